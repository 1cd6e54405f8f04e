package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPProvider consulta um endpoint compatível com o /simple/price da CoinGecko
type HTTPProvider struct {
	BaseURL string
	HTTP    *http.Client
	now     func() time.Time
}

func NewHTTPProvider(base string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		now:     time.Now,
	}
}

type simplePrice struct {
	USD          *decimal.Decimal `json:"usd"`
	USD24hChange *decimal.Decimal `json:"usd_24h_change"`
	USD7dChange  *decimal.Decimal `json:"usd_7d_change"`
}

// Fetch busca as cotações dos símbolos informados; símbolos desconhecidos são ignorados.
// Ativos ausentes da resposta também ficam de fora.
func (p *HTTPProvider) Fetch(ctx context.Context, symbols []string) ([]Quote, error) {
	var (
		ids    []string
		byID   = make(map[string]Asset)
		result []Quote
	)
	for _, s := range symbols {
		a, ok := Lookup(s)
		if !ok {
			continue
		}
		ids = append(ids, a.ProviderID)
		byID[a.ProviderID] = a
	}
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("price provider http %d", res.StatusCode)
	}

	var body map[string]simplePrice
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price provider response: %w", err)
	}

	now := p.now().UTC()
	for _, id := range ids {
		sp, ok := body[id]
		if !ok || sp.USD == nil {
			continue
		}
		a := byID[id]
		quote := Quote{
			Symbol:    a.Symbol,
			Name:      a.Name,
			Price:     *sp.USD,
			UpdatedAt: now,
			Source:    SourceProvider,
		}
		if sp.USD24hChange != nil {
			quote.Change24h = sp.USD24hChange.Round(2)
		}
		if sp.USD7dChange != nil {
			quote.Change7d = sp.USD7dChange.Round(2)
		} else if st, ok := Static(a.Symbol, now); ok {
			// /simple/price não traz variação de 7d
			quote.Change7d = st.Change7d
		}
		result = append(result, quote)
	}
	return result, nil
}
