package pipeline

import (
	"context"
	"sync"
)

// MemoryHistory keeps the latest verdict chain per ticker in process. It is
// the default backend when no Postgres DSN is configured.
type MemoryHistory struct {
	mu     sync.RWMutex
	latest map[string]*CompositeVerdict
	byID   map[string]*CompositeVerdict
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		latest: make(map[string]*CompositeVerdict),
		byID:   make(map[string]*CompositeVerdict),
	}
}

func (h *MemoryHistory) Latest(_ context.Context, ticker string) (*CompositeVerdict, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest[ticker], nil
}

func (h *MemoryHistory) Save(_ context.Context, v *CompositeVerdict) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[v.Ticker] = v
	h.byID[v.RunID] = v
	return nil
}

// ByRunID resolves a verdict from the run-history chain.
func (h *MemoryHistory) ByRunID(runID string) *CompositeVerdict {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byID[runID]
}
