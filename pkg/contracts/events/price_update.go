package events

import "time"

// Evento publicado no tópico "price_updates"
type PriceUpdate struct {
	Symbol    string    `json:"symbol"` // ex: "BTC"
	Name      string    `json:"name"`
	Price     string    `json:"price"` // decimal em string para não perder precisão
	Change24h string    `json:"change_24h"`
	Change7d  string    `json:"change_7d"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"` // "coingecko" | "fallback" | "simulator"
}
