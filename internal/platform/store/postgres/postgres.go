// Package postgres implementa store.Store sobre Postgres (lib/pq).
// Saldo só muda por UPDATE ... SET balance = balance + $1 com a linha travada;
// transições de status usam UPDATE condicional, então repetir uma operação nunca aplica em dobro.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
)

const uniqueViolation = "23505"

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// WithinTx abre a transação, executa fn e faz commit; qualquer erro desfaz tudo
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type tx struct{ q *sql.Tx }

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}

func isUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

// ---- contas

const accountCols = `id, balance, vip_level, total_deposits, referral_code, referred_by, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanAccount(row scanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Balance, &a.VIPLevel, &a.TotalDeposits, &a.ReferralCode, &a.ReferredBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) InsertAccount(ctx context.Context, a *domain.Account) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO accounts(id, balance, vip_level, total_deposits, referral_code, referred_by, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Balance, a.VIPLevel, a.TotalDeposits, a.ReferralCode, a.ReferredBy, a.CreatedAt, a.UpdatedAt)
	if isUnique(err) {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	return err
}

func (t *tx) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	a, err := scanAccount(t.q.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1 FOR UPDATE`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("account", userID)
	}
	return a, err
}

func (t *tx) GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	a, err := scanAccount(t.q.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE referral_code=$1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("referral code", code)
	}
	return a, err
}

func (t *tx) AddBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := t.q.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = now()
		 WHERE id=$2 AND balance + $1 >= 0
		 RETURNING balance`, delta, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id=$1)`, userID).Scan(&exists); err != nil {
			return decimal.Zero, err
		}
		if !exists {
			return decimal.Zero, notFound("account", userID)
		}
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	return bal, err
}

func (t *tx) AddTotalDeposits(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.q.QueryRowContext(ctx,
		`UPDATE accounts SET total_deposits = total_deposits + $1, updated_at = now() WHERE id=$2 RETURNING total_deposits`,
		amount, userID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, notFound("account", userID)
	}
	return total, err
}

func (t *tx) RaiseVIPLevel(ctx context.Context, userID string, level int) (int, error) {
	var out int
	err := t.q.QueryRowContext(ctx,
		`UPDATE accounts SET vip_level = GREATEST(vip_level, $1), updated_at = now() WHERE id=$2 RETURNING vip_level`,
		level, userID).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("account", userID)
	}
	return out, err
}

func (t *tx) SetReferredBy(ctx context.Context, userID, code string) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE accounts SET referred_by=$1, updated_at = now() WHERE id=$2 AND referred_by=''`, code, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReferralAlreadySet
	}
	return nil
}

func (t *tx) AppendLedger(ctx context.Context, e *domain.LedgerEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return t.q.QueryRowContext(ctx,
		`INSERT INTO ledger_entries(user_id, op, amount, balance_after, ref_id, created_at)
		 VALUES($1,$2,$3,$4,$5,$6) RETURNING id`,
		e.UserID, string(e.Op), e.Amount, e.BalanceAfter, e.RefID, e.CreatedAt).Scan(&e.ID)
}

func (t *tx) ListLedger(ctx context.Context, userID string, n int) ([]domain.LedgerEntry, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT id, user_id, op, amount, balance_after, ref_id, created_at
		 FROM ledger_entries WHERE user_id=$1 ORDER BY id DESC`+limitClause(n), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var op string
		if err := rows.Scan(&e.ID, &e.UserID, &op, &e.Amount, &e.BalanceAfter, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Op = domain.LedgerOp(op)
		out = append(out, e)
	}
	return out, rows.Err()
}
