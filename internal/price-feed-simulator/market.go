package simulator

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
)

type tick struct {
	price decimal.Decimal
	open  decimal.Decimal // referência da variação 24h
}

// Market gera preços simulados por passeio aleatório a partir do dataset estático.
// O formato de resposta imita o /simple/price da CoinGecko.
type Market struct {
	mu     sync.RWMutex
	byID   map[string]*tick
	rnd    *rand.Rand
	maxPct float64 // variação máxima por passo, em %
	log    *zap.Logger
}

func NewMarket(seed int64, log *zap.Logger) *Market {
	m := &Market{
		byID:   make(map[string]*tick),
		rnd:    rand.New(rand.NewSource(seed)),
		maxPct: 0.5,
		log:    log,
	}
	now := time.Now().UTC()
	for _, s := range pricefeed.Symbols() {
		a, _ := pricefeed.Lookup(s)
		q, _ := pricefeed.Static(s, now)
		m.byID[a.ProviderID] = &tick{price: q.Price, open: q.Price}
	}
	return m
}

// Step move cada preço até maxPct para cima ou para baixo
func (m *Market) Step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		pct := (m.rnd.Float64()*2 - 1) * m.maxPct
		factor := decimal.NewFromFloat(1 + pct/100)
		next := t.price.Mul(factor).Round(8)
		if next.IsPositive() {
			t.price = next
		}
	}
}

// ResetDay fixa o preço atual como abertura da variação 24h
func (m *Market) ResetDay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		t.open = t.price
	}
}

// Run avança o mercado a cada interval até o done fechar
func (m *Market) Run(interval time.Duration, done <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	day := time.NewTicker(24 * time.Hour)
	defer day.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			m.Step()
		case <-day.C:
			m.ResetDay()
		}
	}
}

type simplePrice struct {
	USD          json.Number  `json:"usd"`
	USD24hChange *json.Number `json:"usd_24h_change,omitempty"`
}

// SimplePrice atende GET /simple/price?ids=bitcoin,ethereum&vs_currencies=usd[&include_24hr_change=true]
func (m *Market) SimplePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !strings.Contains(strings.ToLower(q.Get("vs_currencies")), "usd") {
		http.Error(w, "vs_currencies must include usd", http.StatusBadRequest)
		return
	}
	withChange := q.Get("include_24hr_change") == "true"

	out := make(map[string]simplePrice)
	m.mu.RLock()
	for _, id := range strings.Split(q.Get("ids"), ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		t, ok := m.byID[id]
		if !ok {
			continue
		}
		sp := simplePrice{USD: json.Number(t.price.String())}
		if withChange && t.open.IsPositive() {
			ch := json.Number(t.price.Sub(t.open).Div(t.open).Mul(decimal.NewFromInt(100)).Round(4).String())
			sp.USD24hChange = &ch
		}
		out[id] = sp
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Router expõe o endpoint na raiz e sob /api/v3, como a API pública
func (m *Market) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", m.SimplePrice)
	mux.HandleFunc("/api/v3/simple/price", m.SimplePrice)
	mux.HandleFunc("/api/v3/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gecko_says":"(V3) To the Moon!"}`))
	})
	return mux
}
