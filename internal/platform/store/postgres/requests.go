package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
)

// where monta o filtro comum de listagens (user_id/status)
func where(userID, status string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if userID != "" {
		args = append(args, userID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// resolve transiciona pending -> status; false = já resolvido
func (t *tx) resolve(ctx context.Context, table, kind, id string, status domain.RequestStatus, at time.Time) (bool, error) {
	col := "rejected_at"
	if status == domain.StatusApproved {
		col = "approved_at"
	}
	res, err := t.q.ExecContext(ctx,
		`UPDATE `+table+` SET status=$1, `+col+`=$2 WHERE id=$3 AND status='pending'`,
		string(status), at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, notFound(kind, id)
	}
	return false, nil
}

// ---- depósitos

const depositCols = `id, user_id, amount, method, proof_ref, status, created_at, approved_at, rejected_at`

func scanDeposit(row scanner) (*domain.DepositRequest, error) {
	var (
		d                  domain.DepositRequest
		status             string
		approved, rejected sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.Method, &d.ProofRef, &status, &d.CreatedAt, &approved, &rejected); err != nil {
		return nil, err
	}
	d.Status = domain.RequestStatus(status)
	d.ApprovedAt = timePtr(approved)
	d.RejectedAt = timePtr(rejected)
	return &d, nil
}

func (t *tx) InsertDeposit(ctx context.Context, d *domain.DepositRequest) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO deposit_requests(id, user_id, amount, method, proof_ref, status, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.UserID, d.Amount, d.Method, d.ProofRef, string(d.Status), d.CreatedAt)
	return err
}

func (t *tx) GetDeposit(ctx context.Context, id string) (*domain.DepositRequest, error) {
	d, err := scanDeposit(t.q.QueryRowContext(ctx, `SELECT `+depositCols+` FROM deposit_requests WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("deposit", id)
	}
	return d, err
}

func (t *tx) ResolveDeposit(ctx context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error) {
	return t.resolve(ctx, "deposit_requests", "deposit", id, status, at)
}

func (t *tx) ListDeposits(ctx context.Context, f store.RequestFilter) ([]domain.DepositRequest, error) {
	w, args := where(f.UserID, string(f.Status))
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+depositCols+` FROM deposit_requests`+w+` ORDER BY created_at DESC, id`+limitClause(f.Limit), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DepositRequest
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ---- saques

const withdrawalCols = `id, user_id, amount, fee, net_amount, method, address, status, created_at, approved_at, rejected_at`

func scanWithdrawal(row scanner) (*domain.WithdrawalRequest, error) {
	var (
		w                  domain.WithdrawalRequest
		status             string
		approved, rejected sql.NullTime
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Fee, &w.NetAmount, &w.Method, &w.Address, &status, &w.CreatedAt, &approved, &rejected); err != nil {
		return nil, err
	}
	w.Status = domain.RequestStatus(status)
	w.ApprovedAt = timePtr(approved)
	w.RejectedAt = timePtr(rejected)
	return &w, nil
}

func (t *tx) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO withdrawal_requests(id, user_id, amount, fee, net_amount, method, address, status, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		w.ID, w.UserID, w.Amount, w.Fee, w.NetAmount, w.Method, w.Address, string(w.Status), w.CreatedAt)
	return err
}

func (t *tx) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	w, err := scanWithdrawal(t.q.QueryRowContext(ctx, `SELECT `+withdrawalCols+` FROM withdrawal_requests WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("withdrawal", id)
	}
	return w, err
}

func (t *tx) ResolveWithdrawal(ctx context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error) {
	return t.resolve(ctx, "withdrawal_requests", "withdrawal", id, status, at)
}

func (t *tx) ListWithdrawals(ctx context.Context, f store.RequestFilter) ([]domain.WithdrawalRequest, error) {
	w, args := where(f.UserID, string(f.Status))
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+withdrawalCols+` FROM withdrawal_requests`+w+` ORDER BY created_at DESC, id`+limitClause(f.Limit), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		wr, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wr)
	}
	return out, rows.Err()
}

func (t *tx) CountWithdrawalsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT count(*) FROM withdrawal_requests WHERE user_id=$1 AND status <> 'rejected' AND created_at >= $2`,
		userID, since).Scan(&n)
	return n, err
}
