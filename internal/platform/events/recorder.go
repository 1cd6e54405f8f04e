package events

import (
	"context"
	"sync"

	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

// Recorder guarda os eventos publicados em memória; usado nos testes dos serviços
type Recorder struct {
	mu     sync.Mutex
	Events []events.PlatformEvent
}

func (r *Recorder) Publish(_ context.Context, e events.PlatformEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return nil
}

// Types retorna os tipos publicados, na ordem
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
