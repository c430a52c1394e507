package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// scripted serves bars, consuming one scripted error per call; nil means
// success. Calls past the script succeed.
type scripted struct {
	name   string
	mu     sync.Mutex
	calls  int
	script []error
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Kinds() []market.DataKind {
	return []market.DataKind{market.KindPriceHistory}
}

func (s *scripted) FetchBars(_ context.Context, _ string, _ market.Timeframe) ([]market.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.script) {
		err = s.script[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, err
	}
	return []market.Bar{{Close: 100}}, nil
}

func (s *scripted) FetchFundamentals(context.Context, string) (*market.Fundamentals, error) {
	return nil, ErrKindNotSupported
}

func (s *scripted) FetchOptionsChain(context.Context, string) (*market.OptionsChain, error) {
	return nil, ErrKindNotSupported
}

func (s *scripted) FetchCongressTrades(context.Context, string) ([]market.CongressTrade, error) {
	return nil, ErrKindNotSupported
}

func (s *scripted) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.RPS = 10000
	s.Burst = 10000
	return s
}

func newTestGateway(settings map[string]Settings, ps ...Provider) (*Gateway, *telemetry.HealthSet) {
	reg := NewRegistry()
	for i, p := range ps {
		reg.Register(p, i)
	}
	health := telemetry.NewHealthSet()
	g := NewGateway(reg, health, telemetry.NewTestMetrics(), settings)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g, health
}

func barsKey(ticker string) market.Key {
	return market.Key{Ticker: ticker, Kind: market.KindPriceHistory, Timeframe: market.TimeframeDaily}
}

func TestGatewayFetchAttributesPoint(t *testing.T) {
	p := &scripted{name: "alpha"}
	g, health := newTestGateway(map[string]Settings{"alpha": fastSettings()}, p)

	point, err := g.Fetch(context.Background(), barsKey("ACME"))
	require.NoError(t, err)

	assert.Equal(t, "ACME", point.Ticker)
	assert.Equal(t, market.KindPriceHistory, point.Kind)
	assert.Equal(t, "alpha", point.Provider)
	assert.True(t, point.Primary)
	assert.False(t, point.FetchedAt.IsZero())

	snap := health.Get("alpha").Snapshot()
	assert.Equal(t, int64(1), snap.Requests)
	assert.Equal(t, int64(0), snap.Failures)
}

func TestGatewayRetriesTransientFailures(t *testing.T) {
	transient := errors.New("connection reset")
	p := &scripted{name: "alpha", script: []error{transient, transient}}
	g, _ := newTestGateway(map[string]Settings{"alpha": fastSettings()}, p)

	point, err := g.Fetch(context.Background(), barsKey("ACME"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", point.Provider)
	assert.Equal(t, 3, p.callCount())
}

func TestGatewayRateLimitSwitchesProviderImmediately(t *testing.T) {
	limited := &ProviderError{Provider: "alpha", StatusCode: 429, RateLimited: true, Err: errors.New("429")}
	primary := &scripted{name: "alpha", script: []error{limited}}
	backup := &scripted{name: "beta"}

	g, _ := newTestGateway(map[string]Settings{
		"alpha": fastSettings(), "beta": fastSettings(),
	}, primary, backup)

	point, err := g.Fetch(context.Background(), barsKey("ACME"))
	require.NoError(t, err)

	// No same-provider retry after a 429.
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, "beta", point.Provider)
	assert.False(t, point.Primary)
}

func TestGatewayExhaustion(t *testing.T) {
	boom := errors.New("boom")
	p := &scripted{name: "alpha", script: []error{boom, boom, boom, boom}}
	g, _ := newTestGateway(map[string]Settings{"alpha": fastSettings()}, p)

	_, err := g.Fetch(context.Background(), barsKey("ACME"))
	require.Error(t, err)
	assert.True(t, IsExhausted(err))

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Len(t, ex.Attempts, 4)
}

func TestGatewayNoProvidersForKind(t *testing.T) {
	g, _ := newTestGateway(nil, &scripted{name: "alpha"})
	_, err := g.Fetch(context.Background(),
		market.Key{Ticker: "ACME", Kind: market.KindCongressTrades})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestGatewayHealthOrderingPrefersHealthierProvider(t *testing.T) {
	primary := &scripted{name: "alpha"}
	backup := &scripted{name: "beta"}
	g, health := newTestGateway(map[string]Settings{
		"alpha": fastSettings(), "beta": fastSettings(),
	}, primary, backup)

	// Degrade the configured primary's recent error rate.
	for i := 0; i < 5; i++ {
		health.Get("alpha").RecordAttempt(false, 10*time.Millisecond)
	}

	point, err := g.Fetch(context.Background(), barsKey("ACME"))
	require.NoError(t, err)

	// Served by the healthier backup, still flagged non-primary.
	assert.Equal(t, "beta", point.Provider)
	assert.False(t, point.Primary)
	assert.Equal(t, 0, primary.callCount())
}

func TestGatewayCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("boom")
	s := fastSettings()
	s.MaxRetries = 0
	s.CircuitFailureThreshold = 2

	p := &scripted{name: "alpha", script: []error{boom, boom, boom, boom, boom, boom}}
	g, _ := newTestGateway(map[string]Settings{"alpha": s}, p)

	key := barsKey("ACME")
	for i := 0; i < 3; i++ {
		_, err := g.Fetch(context.Background(), key)
		require.Error(t, err)
	}

	// Third round found the breaker open, so only two calls went out.
	assert.Equal(t, 2, p.callCount())
}

func TestBackoffDelayBounds(t *testing.T) {
	s := DefaultSettings()
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(s, attempt)
		assert.GreaterOrEqual(t, d, s.BackoffBase/2)
		assert.LessOrEqual(t, d, s.BackoffMax)
	}
}
