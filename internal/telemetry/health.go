package telemetry

import (
	"sort"
	"sync"
	"time"
)

// ProviderHealth tracks per-provider call outcomes. The gateway updates it
// after every attempt and reads it back to order provider selection, so the
// counters live behind a single mutex per provider.
type ProviderHealth struct {
	mu sync.Mutex

	name         string
	window       []bool // ring of recent outcomes, true = success
	windowPos    int
	windowFilled bool

	requests     int64
	failures     int64
	consecFails  int64
	latencyEWMA  time.Duration
	lastSuccess  time.Time
	lastFailure  time.Time
}

const healthWindowSize = 50

// ewmaAlpha smooths the latency sample; a new sample carries 20%.
const ewmaAlpha = 0.2

// NewProviderHealth creates a tracker for a named provider.
func NewProviderHealth(name string) *ProviderHealth {
	return &ProviderHealth{
		name:   name,
		window: make([]bool, healthWindowSize),
	}
}

// RecordAttempt folds one call outcome into the counters.
func (h *ProviderHealth) RecordAttempt(success bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests++
	h.window[h.windowPos] = success
	h.windowPos = (h.windowPos + 1) % len(h.window)
	if h.windowPos == 0 {
		h.windowFilled = true
	}

	if h.latencyEWMA == 0 {
		h.latencyEWMA = latency
	} else {
		h.latencyEWMA = time.Duration(float64(h.latencyEWMA)*(1-ewmaAlpha) + float64(latency)*ewmaAlpha)
	}

	now := time.Now()
	if success {
		h.consecFails = 0
		h.lastSuccess = now
	} else {
		h.failures++
		h.consecFails++
		h.lastFailure = now
	}
}

// ErrorRate reports the failure fraction over the recent outcome window.
// Providers with no traffic report 0 so a fresh provider is tried first.
func (h *ProviderHealth) ErrorRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errorRateLocked()
}

func (h *ProviderHealth) errorRateLocked() float64 {
	n := h.windowPos
	if h.windowFilled {
		n = len(h.window)
	}
	if n == 0 {
		return 0
	}
	fails := 0
	for i := 0; i < n; i++ {
		if !h.window[i] {
			fails++
		}
	}
	return float64(fails) / float64(n)
}

// Latency returns the smoothed latency estimate.
func (h *ProviderHealth) Latency() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latencyEWMA
}

// HealthSnapshot is an immutable copy of one provider's counters for the
// health panel.
type HealthSnapshot struct {
	Provider            string        `json:"provider"`
	Requests            int64         `json:"requests"`
	Failures            int64         `json:"failures"`
	ErrorRate           float64       `json:"error_rate"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	AvgLatency          time.Duration `json:"avg_latency"`
	LastSuccess         time.Time     `json:"last_success"`
	LastFailure         time.Time     `json:"last_failure"`
}

// Snapshot copies the current counters.
func (h *ProviderHealth) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Provider:            h.name,
		Requests:            h.requests,
		Failures:            h.failures,
		ErrorRate:           h.errorRateLocked(),
		ConsecutiveFailures: h.consecFails,
		AvgLatency:          h.latencyEWMA,
		LastSuccess:         h.lastSuccess,
		LastFailure:         h.lastFailure,
	}
}

// HealthSet owns the process-wide provider health table. Constructed once at
// startup and passed down; per-provider trackers serialize independently so
// updates for different providers never contend.
type HealthSet struct {
	mu        sync.RWMutex
	providers map[string]*ProviderHealth
}

// NewHealthSet creates an empty health table.
func NewHealthSet() *HealthSet {
	return &HealthSet{providers: make(map[string]*ProviderHealth)}
}

// Get returns the tracker for a provider, creating it on first use.
func (s *HealthSet) Get(name string) *ProviderHealth {
	s.mu.RLock()
	h, ok := s.providers[name]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.providers[name]; ok {
		return h
	}
	h = NewProviderHealth(name)
	s.providers[name] = h
	return h
}

// Snapshots returns all provider snapshots sorted by name.
func (s *HealthSet) Snapshots() []HealthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HealthSnapshot, 0, len(s.providers))
	for _, h := range s.providers {
		out = append(out, h.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
