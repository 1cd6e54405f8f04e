package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/radieske/crypto-bet-platform/migrations"
)

// NewMigrator cria a instância do golang-migrate sobre uma conexão já aberta.
// path vazio usa as migrações embutidas no binário; caso contrário lê "file://<path>".
func NewMigrator(pg *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(pg, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}

	if path != "" {
		return migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

// MigrateUp aplica todas as migrações pendentes; ausência de mudança não é erro
func MigrateUp(pg *sql.DB, path string) error {
	m, err := NewMigrator(pg, path)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
