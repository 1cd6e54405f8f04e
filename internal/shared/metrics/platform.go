package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Platform reúne os contadores de negócio da plataforma.
// Todos os métodos aceitam receiver nil, assim os serviços funcionam sem métricas (ex.: testes).
type Platform struct {
	betsPlaced     prometheus.Counter
	betsCancelled  prometheus.Counter
	betsSettled    *prometheus.CounterVec
	payoutTotal    prometheus.Counter
	requests       *prometheus.CounterVec
	referralMature prometheus.Counter
	schedulerRuns  *prometheus.CounterVec
}

// NewPlatform cria e registra os contadores no registerer informado
func NewPlatform(reg prometheus.Registerer) *Platform {
	m := &Platform{
		betsPlaced:     prometheus.NewCounter(prometheus.CounterOpts{Name: "platform_bets_placed_total", Help: "apostas criadas"}),
		betsCancelled:  prometheus.NewCounter(prometheus.CounterOpts{Name: "platform_bets_cancelled_total", Help: "apostas canceladas pelo usuário"}),
		betsSettled:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "platform_bets_settled_total", Help: "apostas liquidadas por resultado"}, []string{"outcome"}),
		payoutTotal:    prometheus.NewCounter(prometheus.CounterOpts{Name: "platform_payout_amount_total", Help: "valor pago a apostas vencedoras"}),
		requests:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "platform_wallet_requests_total", Help: "transições de depósitos/saques"}, []string{"kind", "status"}),
		referralMature: prometheus.NewCounter(prometheus.CounterOpts{Name: "platform_referral_matured_total", Help: "comissões liberadas após maturação"}),
		schedulerRuns:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "platform_scheduler_runs_total", Help: "execuções da liquidação agendada"}, []string{"result"}),
	}
	reg.MustRegister(m.betsPlaced, m.betsCancelled, m.betsSettled, m.payoutTotal, m.requests, m.referralMature, m.schedulerRuns)
	return m
}

func (m *Platform) BetPlaced() {
	if m == nil {
		return
	}
	m.betsPlaced.Inc()
}

func (m *Platform) BetCancelled() {
	if m == nil {
		return
	}
	m.betsCancelled.Inc()
}

func (m *Platform) BetSettled(won bool, payout decimal.Decimal) {
	if m == nil {
		return
	}
	if won {
		m.betsSettled.WithLabelValues("won").Inc()
		m.payoutTotal.Add(payout.InexactFloat64())
		return
	}
	m.betsSettled.WithLabelValues("lost").Inc()
}

// WalletRequest conta transições: kind = deposit|withdrawal, status = pending|approved|rejected
func (m *Platform) WalletRequest(kind, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, status).Inc()
}

func (m *Platform) ReferralMatured(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.referralMature.Add(float64(n))
}

// SchedulerRun: result = settled|empty|skipped|failed
func (m *Platform) SchedulerRun(result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(result).Inc()
}
