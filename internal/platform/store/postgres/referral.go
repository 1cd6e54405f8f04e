package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
)

const commissionCols = `id, referrer_id, referred_user_id, amount, status, deposit_date, available_date, withdrawn_date`

func scanCommission(row scanner) (*domain.ReferralCommissionItem, error) {
	var (
		it                   domain.ReferralCommissionItem
		status               string
		available, withdrawn sql.NullTime
	)
	if err := row.Scan(&it.ID, &it.ReferrerID, &it.ReferredUserID, &it.Amount, &status, &it.DepositDate, &available, &withdrawn); err != nil {
		return nil, err
	}
	it.Status = domain.CommissionStatus(status)
	it.AvailableDate = timePtr(available)
	it.WithdrawnDate = timePtr(withdrawn)
	return &it, nil
}

func (t *tx) GetCommission(ctx context.Context, referrerID, referredUserID string) (*domain.ReferralCommissionItem, error) {
	it, err := scanCommission(t.q.QueryRowContext(ctx,
		`SELECT `+commissionCols+` FROM referral_commissions
		 WHERE referrer_id=$1 AND referred_user_id=$2 AND status <> 'withdrawn'
		 FOR UPDATE`, referrerID, referredUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("commission", referrerID+"/"+referredUserID)
	}
	return it, err
}

func (t *tx) InsertCommission(ctx context.Context, it *domain.ReferralCommissionItem) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO referral_commissions(id, referrer_id, referred_user_id, amount, status, deposit_date, available_date, withdrawn_date)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		it.ID, it.ReferrerID, it.ReferredUserID, it.Amount, string(it.Status), it.DepositDate,
		nullTime(it.AvailableDate), nullTime(it.WithdrawnDate))
	return err
}

func (t *tx) UpdateCommission(ctx context.Context, it *domain.ReferralCommissionItem) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE referral_commissions
		 SET amount=$1, status=$2, deposit_date=$3, available_date=$4, withdrawn_date=$5
		 WHERE id=$6`,
		it.Amount, string(it.Status), it.DepositDate, nullTime(it.AvailableDate), nullTime(it.WithdrawnDate), it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("commission", it.ID)
	}
	return nil
}

func (t *tx) ListCommissions(ctx context.Context, referrerID string, status domain.CommissionStatus) ([]domain.ReferralCommissionItem, error) {
	q := `SELECT ` + commissionCols + ` FROM referral_commissions
		  WHERE ($1 = '' OR referrer_id=$1) AND ($2 = '' OR status=$2)
		  ORDER BY deposit_date, id`
	// itens listados para saque/maturação são atualizados na mesma transação
	if status != "" && status != domain.CommissionWithdrawn {
		q += ` FOR UPDATE`
	}
	rows, err := t.q.QueryContext(ctx, q, referrerID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReferralCommissionItem
	for rows.Next() {
		it, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (t *tx) InsertReferralPayout(ctx context.Context, p *domain.ReferralPayout) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO referral_payouts(id, referrer_id, gross, fee_percent, fee, net, address, status, item_ids, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.ReferrerID, p.Gross, p.FeePercent, p.Fee, p.Net, p.Address, p.Status, pq.Array(p.ItemIDs), p.CreatedAt)
	return err
}

// ---- agenda

func (t *tx) GetSchedule(ctx context.Context) (*domain.ScheduleConfig, error) {
	var (
		s   domain.ScheduleConfig
		dir string
	)
	err := t.q.QueryRowContext(ctx,
		`SELECT scheduled_date, scheduled_time, winning_direction, updated_at FROM schedule_config WHERE id=1`).
		Scan(&s.ScheduledDate, &s.ScheduledTime, &dir, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("schedule", "singleton")
	}
	if err != nil {
		return nil, err
	}
	s.WinningDirection = domain.Direction(dir)
	return &s, nil
}

func (t *tx) SaveSchedule(ctx context.Context, s *domain.ScheduleConfig) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO schedule_config(id, scheduled_date, scheduled_time, winning_direction, updated_at)
		 VALUES(1,$1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET
		   scheduled_date=EXCLUDED.scheduled_date,
		   scheduled_time=EXCLUDED.scheduled_time,
		   winning_direction=EXCLUDED.winning_direction,
		   updated_at=EXCLUDED.updated_at`,
		s.ScheduledDate, s.ScheduledTime, string(s.WinningDirection), s.UpdatedAt)
	return err
}

// ClaimSettlementRun insere a trava da ocorrência; uma execução failed ou com lease vencido pode ser retomada
func (t *tx) ClaimSettlementRun(ctx context.Context, run *domain.SettlementRun, staleBefore time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO settlement_runs(scheduled_at, direction, status, started_at)
		 VALUES($1,$2,'running',$3)
		 ON CONFLICT (scheduled_at) DO UPDATE SET
		   status='running', direction=EXCLUDED.direction, started_at=EXCLUDED.started_at,
		   finished_at=NULL, error=''
		 WHERE settlement_runs.status='failed'
		    OR (settlement_runs.status='running' AND settlement_runs.started_at < $4)`,
		run.ScheduledAt, string(run.Direction), run.StartedAt, staleBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *tx) FinishSettlementRun(ctx context.Context, run *domain.SettlementRun) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE settlement_runs SET status=$1, processed=$2, total_paid=$3, finished_at=$4, error=$5
		 WHERE scheduled_at=$6`,
		string(run.Status), run.Processed, run.TotalPaid, nullTime(run.FinishedAt), run.Error, run.ScheduledAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("settlement run", run.ScheduledAt.String())
	}
	return nil
}

func (t *tx) GetSettlementRun(ctx context.Context, scheduledAt time.Time) (*domain.SettlementRun, error) {
	var (
		r        domain.SettlementRun
		dir, st  string
		finished sql.NullTime
	)
	err := t.q.QueryRowContext(ctx,
		`SELECT scheduled_at, direction, status, processed, total_paid, started_at, finished_at, error
		 FROM settlement_runs WHERE scheduled_at=$1`, scheduledAt).
		Scan(&r.ScheduledAt, &dir, &st, &r.Processed, &r.TotalPaid, &r.StartedAt, &finished, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("settlement run", scheduledAt.String())
	}
	if err != nil {
		return nil, err
	}
	r.Direction = domain.Direction(dir)
	r.Status = domain.RunStatus(st)
	r.FinishedAt = timePtr(finished)
	return &r, nil
}
