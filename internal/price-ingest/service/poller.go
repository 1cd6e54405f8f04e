package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) ([]pricefeed.Quote, error)
}

type Publisher interface {
	Publish(ctx context.Context, updates ...events.PriceUpdate) error
}

// Poller consulta o provedor de preços periodicamente e publica as cotações no Kafka.
// Se o provedor falhar, publica o dataset estático marcado como fallback.
type Poller struct {
	Provider  Fetcher
	Publisher Publisher
	Symbols   []string
	Interval  time.Duration
	Log       *zap.Logger

	OnPublished func(source string, n int) // métricas
	OnError     func(stage string)         // métricas

	Now func() time.Time
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Poller) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Collect busca uma rodada de cotações, completando com o fallback o que faltar
func (p *Poller) Collect(ctx context.Context) []pricefeed.Quote {
	got := map[string]pricefeed.Quote{}
	quotes, err := p.Provider.Fetch(ctx, p.Symbols)
	if err != nil {
		p.Log.Warn("price provider failed, using fallback", zap.Error(err))
		p.fail("fetch")
	}
	for _, q := range quotes {
		got[q.Symbol] = q
	}

	out := make([]pricefeed.Quote, 0, len(p.Symbols))
	for _, s := range p.Symbols {
		if q, ok := got[pricefeed.Normalize(s)]; ok {
			out = append(out, q)
			continue
		}
		if q, ok := pricefeed.Static(s, p.now().UTC()); ok {
			out = append(out, q)
		}
	}
	return out
}

// PollOnce coleta e publica uma rodada
func (p *Poller) PollOnce(ctx context.Context) error {
	quotes := p.Collect(ctx)
	updates := make([]events.PriceUpdate, 0, len(quotes))
	bySource := map[string]int{}
	for _, q := range quotes {
		updates = append(updates, pricefeed.ToEvent(q))
		bySource[q.Source]++
	}
	if err := p.Publisher.Publish(ctx, updates...); err != nil {
		p.fail("publish")
		return err
	}
	if p.OnPublished != nil {
		for src, n := range bySource {
			p.OnPublished(src, n)
		}
	}
	return nil
}

// Run faz uma rodada imediata e repete a cada Interval até o contexto ser cancelado
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.Log.Warn("price poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.Log.Info("context canceled, stopping price poller")
			return
		case <-t.C:
		}
	}
}
