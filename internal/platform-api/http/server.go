package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/accounts"
	"github.com/radieske/crypto-bet-platform/internal/platform/bets"
	"github.com/radieske/crypto-bet-platform/internal/platform/referral"
	"github.com/radieske/crypto-bet-platform/internal/platform/schedule"
	"github.com/radieske/crypto-bet-platform/internal/platform/wallet"
	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/auth"
)

// PriceHistory é a leitura do histórico persistido pelo price-processor
type PriceHistory interface {
	History(ctx context.Context, symbol string, limit int) ([]pricefeed.Quote, error)
}

// API expõe os endpoints REST da plataforma (usuário e admin)
type API struct {
	Log      *zap.Logger
	Auth     *auth.Signer
	Accounts *accounts.Service
	Wallet   *wallet.Service
	Bets     *bets.Service
	Referral *referral.Engine
	Schedule *schedule.Service
	Prices   *pricefeed.Feed
	History  PriceHistory // opcional
	WS       http.Handler // opcional: hub WebSocket
	Origins  []string     // CORS; vazio = qualquer origem
}

// Router retorna o roteador HTTP com todas as rotas
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.withCORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}

	r.Route("/v1", func(r chi.Router) {
		// públicas
		r.Get("/vip/tiers", a.listTiers)
		r.Get("/prices", a.listPrices)
		r.Get("/prices/{symbol}", a.getPrice)
		r.Get("/prices/{symbol}/history", a.priceHistory)
		r.Get("/schedule", a.getSchedule)

		r.Group(func(r chi.Router) {
			r.Use(a.Auth.Authenticate)

			r.Post("/accounts", a.register)
			r.Get("/me", a.me)
			r.Get("/me/ledger", a.ledger)
			r.Post("/me/referral-code", a.applyReferralCode)

			r.Post("/deposits", a.requestDeposit)
			r.Get("/deposits", a.myDeposits)
			r.Post("/withdrawals", a.requestWithdrawal)
			r.Get("/withdrawals", a.myWithdrawals)

			r.Post("/bets", a.placeBet)
			r.Get("/bets", a.myBets)
			r.Post("/bets/{id}/cancel", a.cancelBet)

			r.Get("/referrals", a.referralSummary)
			r.Post("/referrals/withdraw", a.referralWithdraw)
			r.Post("/referrals/transfer", a.referralTransfer)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/deposits", a.adminDeposits)
				r.Post("/deposits/{id}/approve", a.approveDeposit)
				r.Post("/deposits/{id}/reject", a.rejectDeposit)
				r.Get("/withdrawals", a.adminWithdrawals)
				r.Post("/withdrawals/{id}/approve", a.approveWithdrawal)
				r.Post("/withdrawals/{id}/reject", a.rejectWithdrawal)

				r.Get("/schedule", a.adminGetSchedule)
				r.Put("/schedule", a.setSchedule)
				r.Post("/settlements", a.settleNow)
				r.Get("/bets", a.adminBets)

				r.Put("/accounts/{id}/vip", a.setVIPLevel)
				r.Post("/referrals/mature", a.matureReferrals)
			})
		})
	})
	return r
}

// withCORS libera as origens configuradas (todas se a lista estiver vazia)
func (a *API) withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := a.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (a *API) allowedOrigin(origin string) string {
	if len(a.Origins) == 0 {
		return "*"
	}
	for _, o := range a.Origins {
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// AllowOrigin é a política de origem usada pelo upgrader WebSocket
func (a *API) AllowOrigin(r *http.Request) bool {
	return a.allowedOrigin(r.Header.Get("Origin")) != ""
}
