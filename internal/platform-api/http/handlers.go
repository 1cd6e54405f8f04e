package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform-api/dto"
	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/vip"
)

// contas

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !a.bind(w, r, &req) {
		return
	}
	acc, err := a.Accounts.Register(r.Context(), userID(r), req.ReferralCode)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.Account(acc))
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	acc, err := a.Accounts.Get(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := dto.Account(acc)
	tier := vip.TierFor(acc.VIPLevel)
	resp.Tier = &tier
	if n, err := a.Wallet.Remaining(r.Context(), acc.ID); err == nil {
		resp.WithdrawalsRemaining = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Accounts.Ledger(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Ledger(entries))
}

func (a *API) applyReferralCode(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyReferralRequest
	if !a.bind(w, r, &req) {
		return
	}
	acc, err := a.Accounts.ApplyReferralCode(r.Context(), userID(r), req.Code)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Account(acc))
}

// depósitos e saques

func (a *API) requestDeposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if !a.bind(w, r, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	d, err := a.Wallet.RequestDeposit(r.Context(), userID(r), amount, req.Method, req.ProofURL)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.Deposit(*d))
}

func (a *API) myDeposits(w http.ResponseWriter, r *http.Request) {
	a.listDeposits(w, r, store.RequestFilter{UserID: userID(r), Limit: queryLimit(r)})
}

func (a *API) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawalRequest
	if !a.bind(w, r, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	wr, err := a.Wallet.RequestWithdrawal(r.Context(), userID(r), amount, req.Method, req.Address)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.Withdrawal(*wr))
}

func (a *API) myWithdrawals(w http.ResponseWriter, r *http.Request) {
	a.listWithdrawals(w, r, store.RequestFilter{UserID: userID(r), Limit: queryLimit(r)})
}

func (a *API) listDeposits(w http.ResponseWriter, r *http.Request, f store.RequestFilter) {
	f.Status = domain.RequestStatus(r.URL.Query().Get("status"))
	out, err := a.Wallet.ListDeposits(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Deposits(out))
}

func (a *API) listWithdrawals(w http.ResponseWriter, r *http.Request, f store.RequestFilter) {
	f.Status = domain.RequestStatus(r.URL.Query().Get("status"))
	out, err := a.Wallet.ListWithdrawals(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Withdrawals(out))
}

// apostas

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if !a.bind(w, r, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	b, err := a.Bets.PlaceBet(r.Context(), userID(r), req.Asset, req.Direction, amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.Bet(*b))
}

func (a *API) myBets(w http.ResponseWriter, r *http.Request) {
	out, err := a.Bets.ListBets(r.Context(), store.BetFilter{
		UserID: userID(r),
		Status: domain.BetStatus(r.URL.Query().Get("status")),
		Limit:  queryLimit(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Bets(out))
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.Bets.CancelBet(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Bet(*b))
}

// indicações

func (a *API) referralSummary(w http.ResponseWriter, r *http.Request) {
	s, err := a.Referral.Summary(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReferralSummaryResponse{
		ReferralCode: s.ReferralCode,
		Pending:      s.Pending,
		Available:    s.Available,
		Withdrawn:    s.Withdrawn,
		Items:        dto.CommissionItems(s.Items),
	})
}

func (a *API) referralWithdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.ReferralWithdrawRequest
	if !a.bind(w, r, &req) {
		return
	}
	p, err := a.Referral.WithdrawAvailable(r.Context(), userID(r), req.Address)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ReferralPayout(p))
}

func (a *API) referralTransfer(w http.ResponseWriter, r *http.Request) {
	amount, err := a.Referral.TransferAvailableToBalance(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TransferResponse{Transferred: amount})
}

// públicas

func (a *API) listTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vip.All())
}

func (a *API) listPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Prices.Quotes(r.Context()))
}

func (a *API) getPrice(w http.ResponseWriter, r *http.Request) {
	q, err := a.Prices.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) priceHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	out, err := a.History.History(r.Context(), chi.URLParam(r, "symbol"), queryLimit(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// getSchedule é a visão do usuário: data, hora e contagem regressiva, sem a direção vencedora
func (a *API) getSchedule(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.Schedule.Get(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := dto.ScheduleResponse{ScheduledDate: cfg.ScheduledDate, ScheduledTime: cfg.ScheduledTime}
	if cd, ok, err := a.Schedule.Countdown(r.Context()); err == nil && ok {
		at := cd.ScheduledAt
		resp.ScheduledAt = &at
		resp.RemainingSeconds = cd.RemainingSeconds
		resp.Due = cd.Due
	}
	writeJSON(w, http.StatusOK, resp)
}

// admin

func (a *API) adminDeposits(w http.ResponseWriter, r *http.Request) {
	a.listDeposits(w, r, store.RequestFilter{UserID: r.URL.Query().Get("userId"), Limit: queryLimit(r)})
}

func (a *API) approveDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := a.Wallet.ApproveDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Deposit(*d))
}

func (a *API) rejectDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := a.Wallet.RejectDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Deposit(*d))
}

func (a *API) adminWithdrawals(w http.ResponseWriter, r *http.Request) {
	a.listWithdrawals(w, r, store.RequestFilter{UserID: r.URL.Query().Get("userId"), Limit: queryLimit(r)})
}

func (a *API) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	wr, err := a.Wallet.ApproveWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Withdrawal(*wr))
}

func (a *API) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	wr, err := a.Wallet.RejectWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Withdrawal(*wr))
}

func (a *API) adminGetSchedule(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.Schedule.Get(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminSchedule(cfg))
}

func (a *API) setSchedule(w http.ResponseWriter, r *http.Request) {
	var req dto.ScheduleRequest
	if !a.bind(w, r, &req) {
		return
	}
	cfg, err := a.Schedule.Set(r.Context(), req.Date, req.Time, domain.Direction(req.WinningDirection))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminSchedule(cfg))
}

// settleNow liquida imediatamente; sem direção no corpo usa a da agenda.
// Não avança a agenda: isso é papel do settlement-scheduler.
func (a *API) settleNow(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleRequest
	if r.ContentLength != 0 {
		if !a.bind(w, r, &req) {
			return
		}
	}
	direction := domain.Direction(req.WinningDirection)
	if direction == "" {
		cfg, err := a.Schedule.Get(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		direction = cfg.WinningDirection
	}

	res, err := a.Bets.SettleAll(r.Context(), direction)
	if errors.Is(err, domain.ErrNothingToProcess) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	if err != nil && res.Processed == 0 {
		a.writeError(w, r, err)
		return
	}
	if err != nil {
		// parcial: as apostas liquidadas continuam válidas, o restante fica para a próxima rodada
		a.Log.Warn("manual settlement partially failed", zap.Int("processed", res.Processed), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) adminBets(w http.ResponseWriter, r *http.Request) {
	out, err := a.Bets.ListBets(r.Context(), store.BetFilter{
		UserID: r.URL.Query().Get("userId"),
		Status: domain.BetStatus(r.URL.Query().Get("status")),
		Limit:  queryLimit(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Bets(out))
}

func (a *API) setVIPLevel(w http.ResponseWriter, r *http.Request) {
	var req dto.VIPLevelRequest
	if !a.bind(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	level, err := a.Accounts.SetVIPLevel(r.Context(), id, req.Level)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VIPLevelResponse{UserID: id, VIPLevel: level})
}

func (a *API) matureReferrals(w http.ResponseWriter, r *http.Request) {
	n, err := a.Referral.MaturePending(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MatureResponse{Matured: n})
}
