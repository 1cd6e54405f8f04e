package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/db"
	"github.com/radieske/crypto-bet-platform/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Must("migrate", cfg.Env, cfg.LogLevel)
	defer log.Sync()

	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|version|force <version>>")
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	m, err := db.NewMigrator(pg, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("migrator", zap.Error(err))
	}

	switch os.Args[1] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("migrate up", zap.Error(err))
		}
		log.Info("migrations applied")

	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("migrate down", zap.Error(err))
		}
		log.Info("migration rolled back")

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal("migrate version", zap.Error(err))
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatal("invalid version", zap.String("arg", os.Args[2]))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("migrate force", zap.Error(err))
		}
		log.Info("forced version", zap.Int("version", version))

	default:
		log.Fatal("unknown command", zap.String("command", os.Args[1]))
	}
}
