package pricefeed

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

// ToEvent converte a cotação no contrato do tópico price_updates
func ToEvent(q Quote) events.PriceUpdate {
	return events.PriceUpdate{
		Symbol:    q.Symbol,
		Name:      q.Name,
		Price:     q.Price.String(),
		Change24h: q.Change24h.String(),
		Change7d:  q.Change7d.String(),
		UpdatedAt: q.UpdatedAt,
		Source:    q.Source,
	}
}

// FromEvent valida e converte o evento recebido do Kafka
func FromEvent(e events.PriceUpdate) (Quote, error) {
	sym := Normalize(e.Symbol)
	if sym == "" {
		return Quote{}, fmt.Errorf("price update without symbol")
	}
	price, err := decimal.NewFromString(e.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("price update %s: %w", sym, err)
	}
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("price update %s: non-positive price %s", sym, e.Price)
	}
	q := Quote{Symbol: sym, Name: e.Name, Price: price, UpdatedAt: e.UpdatedAt, Source: e.Source}
	if e.Change24h != "" {
		if q.Change24h, err = decimal.NewFromString(e.Change24h); err != nil {
			return Quote{}, fmt.Errorf("price update %s change_24h: %w", sym, err)
		}
	}
	if e.Change7d != "" {
		if q.Change7d, err = decimal.NewFromString(e.Change7d); err != nil {
			return Quote{}, fmt.Errorf("price update %s change_7d: %w", sym, err)
		}
	}
	return q, nil
}
