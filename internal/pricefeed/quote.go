// Package pricefeed fornece cotações de ativos para exibição e para carimbar preço/shares nas apostas.
// O provedor externo é opaco; sem ele, o dataset estático é servido.
package pricefeed

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceSnapshot = "snapshot"
	SourceFallback = "fallback"
)

// Quote é a cotação atual de um ativo em USD
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Change7d  decimal.Decimal `json:"change7d"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Source    string          `json:"source,omitempty"`
}

// Asset liga o símbolo exibido ao id do provedor (CoinGecko)
type Asset struct {
	Symbol     string
	Name       string
	ProviderID string
}

type fallbackRow struct {
	Asset
	price, ch24, ch7 string
}

var fallback = []fallbackRow{
	{Asset{"BTC", "Bitcoin", "bitcoin"}, "67250.00", "1.85", "4.20"},
	{Asset{"ETH", "Ethereum", "ethereum"}, "3480.50", "2.10", "5.75"},
	{Asset{"BNB", "BNB", "binancecoin"}, "585.30", "-0.45", "1.30"},
	{Asset{"SOL", "Solana", "solana"}, "172.40", "3.60", "9.10"},
	{Asset{"XRP", "XRP", "ripple"}, "0.5230", "-1.20", "-2.45"},
	{Asset{"ADA", "Cardano", "cardano"}, "0.4510", "0.75", "-0.90"},
	{Asset{"DOGE", "Dogecoin", "dogecoin"}, "0.1560", "4.80", "12.30"},
}

var assets = func() map[string]Asset {
	m := make(map[string]Asset, len(fallback))
	for _, r := range fallback {
		m[r.Symbol] = r.Asset
	}
	return m
}()

// Normalize padroniza o símbolo (maiúsculas, sem espaços)
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup retorna o ativo conhecido pelo símbolo
func Lookup(symbol string) (Asset, bool) {
	a, ok := assets[Normalize(symbol)]
	return a, ok
}

// Symbols lista os símbolos conhecidos, ordenados
func Symbols() []string {
	out := make([]string, 0, len(assets))
	for s := range assets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Static retorna a cotação do dataset estático
func Static(symbol string, now time.Time) (Quote, bool) {
	symbol = Normalize(symbol)
	for _, r := range fallback {
		if r.Symbol == symbol {
			return Quote{
				Symbol:    r.Symbol,
				Name:      r.Name,
				Price:     decimal.RequireFromString(r.price),
				Change24h: decimal.RequireFromString(r.ch24),
				Change7d:  decimal.RequireFromString(r.ch7),
				UpdatedAt: now,
				Source:    SourceFallback,
			}, true
		}
	}
	return Quote{}, false
}
