package pricefeed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
)

// Reader é a leitura da cotação em cache (Redis em produção)
type Reader interface {
	GetCurrent(ctx context.Context, symbol string) (Quote, bool, error)
}

// SnapshotReader lê a última cotação persistida pelo price-processor
type SnapshotReader interface {
	Snapshot(ctx context.Context, symbol string) (Quote, bool, error)
}

// Feed resolve cotações: cache, snapshot persistido e por fim o dataset estático.
// Falha de qualquer camada nunca falha a requisição.
type Feed struct {
	cache     Reader
	snapshots SnapshotReader
	log       *zap.Logger
	now       func() time.Time
}

func NewFeed(cache Reader, log *zap.Logger) *Feed {
	return &Feed{cache: cache, log: log, now: time.Now}
}

// WithSnapshots liga a leitura do Postgres entre o cache e o fallback
func (f *Feed) WithSnapshots(r SnapshotReader) *Feed {
	f.snapshots = r
	return f
}

// Quote retorna ErrUnknownAsset para símbolos fora do catálogo
func (f *Feed) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	if _, ok := Lookup(symbol); !ok {
		return Quote{}, domain.ErrUnknownAsset
	}

	if f.cache != nil {
		q, ok, err := f.cache.GetCurrent(ctx, symbol)
		switch {
		case err != nil:
			f.log.Warn("price cache read failed, serving fallback", zap.String("symbol", symbol), zap.Error(err))
		case ok && q.Price.IsPositive():
			q.Source = SourceCache
			return q, nil
		}
	}

	if f.snapshots != nil {
		q, ok, err := f.snapshots.Snapshot(ctx, symbol)
		switch {
		case err != nil:
			f.log.Warn("price snapshot read failed, serving fallback", zap.String("symbol", symbol), zap.Error(err))
		case ok && q.Price.IsPositive():
			q.Source = SourceSnapshot
			return q, nil
		}
	}

	q, _ := Static(symbol, f.now().UTC())
	return q, nil
}

// Quotes retorna todas as cotações do catálogo
func (f *Feed) Quotes(ctx context.Context) []Quote {
	syms := Symbols()
	out := make([]Quote, 0, len(syms))
	for _, s := range syms {
		q, err := f.Quote(ctx, s)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	return out
}
