package providers

import (
	"context"
	"sort"
	"sync"

	"github.com/mphinancial/terminal/internal/market"
)

// Provider is the capability interface every data source implements, one
// method per data kind. A provider that does not serve a kind returns
// ErrKindNotSupported and must not be registered for it.
type Provider interface {
	Name() string
	Kinds() []market.DataKind

	FetchBars(ctx context.Context, ticker string, tf market.Timeframe) ([]market.Bar, error)
	FetchFundamentals(ctx context.Context, ticker string) (*market.Fundamentals, error)
	FetchOptionsChain(ctx context.Context, ticker string) (*market.OptionsChain, error)
	FetchCongressTrades(ctx context.Context, ticker string) ([]market.CongressTrade, error)
}

type registered struct {
	provider Provider
	priority int
	kinds    map[market.DataKind]bool
}

// Registry holds the providers registered at startup, tagged with their
// configured priority order. Registration is done once during wiring;
// lookups afterward are read-only.
type Registry struct {
	mu      sync.RWMutex
	entries []registered
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider with a priority (lower wins ties).
func (r *Registry) Register(p Provider, priority int) {
	kinds := make(map[market.DataKind]bool, len(p.Kinds()))
	for _, k := range p.Kinds() {
		kinds[k] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registered{provider: p, priority: priority, kinds: kinds})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
}

// ForKind returns the providers serving a kind, in configured priority order.
func (r *Registry) ForKind(kind market.DataKind) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	for _, e := range r.entries {
		if e.kinds[kind] {
			out = append(out, e.provider)
		}
	}
	return out
}

// Limited restricts a provider to a configured subset of the kinds it can
// natively serve, so one client type can back differently scoped registry
// entries.
func Limited(p Provider, kinds []market.DataKind) Provider {
	return &limited{Provider: p, kinds: kinds}
}

type limited struct {
	Provider
	kinds []market.DataKind
}

func (l *limited) Kinds() []market.DataKind { return l.kinds }

// Names lists all registered provider names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.provider.Name())
	}
	return out
}
