package pricefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/crypto-bet-platform/internal/shared/cache"
)

// KeyCurrent é a chave Redis da cotação atual de um ativo
func KeyCurrent(symbol string) string { return "price:current:" + Normalize(symbol) }

// RedisCache guarda a última cotação de cada ativo com TTL
type RedisCache struct {
	store *cache.Store
	ttl   time.Duration
}

func NewRedisCache(st *cache.Store, ttl time.Duration) *RedisCache {
	return &RedisCache{store: st, ttl: ttl}
}

func (c *RedisCache) SetCurrent(ctx context.Context, q Quote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, KeyCurrent(q.Symbol), b, c.ttl)
}

// GetCurrent retorna ok=false quando não há cotação em cache
func (c *RedisCache) GetCurrent(ctx context.Context, symbol string) (Quote, bool, error) {
	b, ok, err := c.store.Get(ctx, KeyCurrent(symbol))
	if err != nil || !ok {
		return Quote{}, false, err
	}
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return Quote{}, false, err
	}
	return q, true, nil
}
