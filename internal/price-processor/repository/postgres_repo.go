package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
)

// PostgresRepo persiste as cotações consumidas do Kafka
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent grava a cotação corrente do ativo em price_snapshots.
// Mensagens atrasadas (updated_at anterior ao gravado) não sobrescrevem a atual.
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, q pricefeed.Quote) error {
	const stmt = `
		INSERT INTO price_snapshots
		  (symbol, name, price, change_24h, change_7d, source, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (symbol) DO UPDATE SET
		  name       = EXCLUDED.name,
		  price      = EXCLUDED.price,
		  change_24h = EXCLUDED.change_24h,
		  change_7d  = EXCLUDED.change_7d,
		  source     = EXCLUDED.source,
		  updated_at = EXCLUDED.updated_at
		WHERE price_snapshots.updated_at <= EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, stmt,
		q.Symbol, q.Name, q.Price, q.Change24h.Round(2), q.Change7d.Round(2), q.Source, q.UpdatedAt,
	)
	return err
}

// InsertHistory acrescenta a cotação em price_history
func (r *PostgresRepo) InsertHistory(ctx context.Context, q pricefeed.Quote) error {
	const stmt = `INSERT INTO price_history (symbol, price, updated_at) VALUES ($1,$2,$3)`
	_, err := r.DB.ExecContext(ctx, stmt, q.Symbol, q.Price, q.UpdatedAt)
	return err
}

// Snapshot lê a cotação corrente persistida; ok=false quando o ativo nunca foi gravado
func (r *PostgresRepo) Snapshot(ctx context.Context, symbol string) (pricefeed.Quote, bool, error) {
	const stmt = `
		SELECT symbol, name, price, change_24h, change_7d, source, updated_at
		FROM price_snapshots WHERE symbol = $1
	`
	var q pricefeed.Quote
	err := r.DB.QueryRowContext(ctx, stmt, pricefeed.Normalize(symbol)).
		Scan(&q.Symbol, &q.Name, &q.Price, &q.Change24h, &q.Change7d, &q.Source, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pricefeed.Quote{}, false, nil
	}
	if err != nil {
		return pricefeed.Quote{}, false, err
	}
	return q, true, nil
}

// History retorna os últimos pontos do ativo, do mais recente para o mais antigo
func (r *PostgresRepo) History(ctx context.Context, symbol string, limit int) ([]pricefeed.Quote, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const stmt = `
		SELECT symbol, price, updated_at FROM price_history
		WHERE symbol = $1 ORDER BY updated_at DESC LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, stmt, pricefeed.Normalize(symbol), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricefeed.Quote
	for rows.Next() {
		var q pricefeed.Quote
		if err := rows.Scan(&q.Symbol, &q.Price, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
