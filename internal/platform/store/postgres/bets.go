package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
)

const betCols = `id, user_id, asset, direction, amount, shares, price, interest_rate, status, is_processed, payout, created_at, settled_at`

func scanBet(row scanner) (*domain.Bet, error) {
	var (
		b           domain.Bet
		dir, status string
		settled     sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Asset, &dir, &b.Amount, &b.Shares, &b.Price, &b.InterestRate,
		&status, &b.IsProcessed, &b.Payout, &b.CreatedAt, &settled); err != nil {
		return nil, err
	}
	b.Direction = domain.Direction(dir)
	b.Status = domain.BetStatus(status)
	b.SettledAt = timePtr(settled)
	return &b, nil
}

func (t *tx) queryBets(ctx context.Context, q string, args ...any) ([]domain.Bet, error) {
	rows, err := t.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (t *tx) InsertBet(ctx context.Context, b *domain.Bet) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO bets(id, user_id, asset, direction, amount, shares, price, interest_rate, status, is_processed, payout, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.UserID, b.Asset, string(b.Direction), b.Amount, b.Shares, b.Price, b.InterestRate,
		string(b.Status), b.IsProcessed, b.Payout, b.CreatedAt)
	return err
}

func (t *tx) GetBet(ctx context.Context, id string) (*domain.Bet, error) {
	b, err := scanBet(t.q.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("bet", id)
	}
	return b, err
}

func (t *tx) CancelOpenBet(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE bets SET status='cancelled', settled_at=$1 WHERE id=$2 AND status='open' AND is_processed=false`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *tx) ListUnprocessedOpenBets(ctx context.Context) ([]domain.Bet, error) {
	return t.queryBets(ctx,
		`SELECT `+betCols+` FROM bets WHERE status='open' AND is_processed=false ORDER BY created_at, id`)
}

// LatchBet é a trava de liquidação: só a primeira execução encontra is_processed=false
func (t *tx) LatchBet(ctx context.Context, id string, payout decimal.Decimal, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE bets SET is_processed=true, status='completed', payout=$1, settled_at=$2
		 WHERE id=$3 AND is_processed=false AND status='open'`, payout, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *tx) ListBets(ctx context.Context, f store.BetFilter) ([]domain.Bet, error) {
	w, args := where(f.UserID, string(f.Status))
	return t.queryBets(ctx, `SELECT `+betCols+` FROM bets`+w+` ORDER BY created_at DESC, id`+limitClause(f.Limit), args...)
}
