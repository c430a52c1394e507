package providers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// ErrNoProviders means a data kind was requested that no registered provider
// serves. Wiring validates coverage at startup, so hitting this at run time
// is a configuration bug, not a transient condition.
var ErrNoProviders = errors.New("no providers registered for data kind")

// Settings bounds one provider's retry and throttling behavior.
type Settings struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	RPS         float64
	Burst       int

	CircuitMaxRequests      uint32
	CircuitInterval         time.Duration
	CircuitTimeout          time.Duration
	CircuitFailureThreshold uint32
}

// DefaultSettings mirrors the config-level defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:              3,
		BackoffBase:             250 * time.Millisecond,
		BackoffMax:              8 * time.Second,
		RPS:                     2,
		Burst:                   4,
		CircuitMaxRequests:      2,
		CircuitInterval:         time.Minute,
		CircuitTimeout:          30 * time.Second,
		CircuitFailureThreshold: 5,
	}
}

// Gateway fronts all registered providers with health-ordered selection,
// per-provider rate limiting, circuit breaking, and retry with backoff.
// Transient failures stop here; callers see either a RawDataPoint or a
// terminal ExhaustedError.
type Gateway struct {
	registry *Registry
	health   *telemetry.HealthSet
	metrics  *telemetry.Metrics

	settings map[string]Settings
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewGateway wires the gateway over a populated registry. Provider names
// missing from settings get DefaultSettings.
func NewGateway(reg *Registry, health *telemetry.HealthSet, metrics *telemetry.Metrics, settings map[string]Settings) *Gateway {
	g := &Gateway{
		registry: reg,
		health:   health,
		metrics:  metrics,
		settings: settings,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		sleep:    sleepCtx,
		now:      time.Now,
	}
	for _, name := range reg.Names() {
		s := g.setting(name)
		g.limiters[name] = rate.NewLimiter(rate.Limit(s.RPS), s.Burst)
		g.breakers[name] = newBreaker(name, s)
	}
	return g
}

func newBreaker(name string, s Settings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.CircuitMaxRequests,
		Interval:    s.CircuitInterval,
		Timeout:     s.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.CircuitFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	})
}

func (g *Gateway) setting(name string) Settings {
	if s, ok := g.settings[name]; ok {
		return s
	}
	return DefaultSettings()
}

// Fetch resolves one (ticker, kind, timeframe) key through the provider
// chain. Providers are tried in health order (lowest recent error rate,
// then lowest latency, configured priority as tiebreak); a rate-limit
// response moves to the next provider immediately instead of retrying.
func (g *Gateway) Fetch(ctx context.Context, key market.Key) (*market.RawDataPoint, error) {
	candidates := g.registry.ForKind(key.Kind)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProviders, key.Kind)
	}
	primaryName := candidates[0].Name()
	ordered := g.orderByHealth(candidates)

	var attempts []error
	for _, p := range ordered {
		point, errs := g.fetchFrom(ctx, p, key, primaryName)
		if point != nil {
			return point, nil
		}
		attempts = append(attempts, errs...)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	log.Error().
		Str("key", key.String()).
		Int("providers_tried", len(ordered)).
		Msg("all providers exhausted")
	return nil, &ExhaustedError{Key: key, Attempts: attempts}
}

// fetchFrom runs the retry loop against a single provider. It returns the
// fetched point, or the list of attempt errors when the provider gave up.
func (g *Gateway) fetchFrom(ctx context.Context, p Provider, key market.Key, primaryName string) (*market.RawDataPoint, []error) {
	name := p.Name()
	s := g.setting(name)
	hp := g.health.Get(name)
	breaker := g.breakers[name]
	limiter := g.limiters[name]

	var attempts []error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, backoffDelay(s, attempt)); err != nil {
				return nil, append(attempts, err)
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, append(attempts, err)
		}

		start := g.now()
		payload, err := breaker.Execute(func() (interface{}, error) {
			return g.dispatch(ctx, p, key)
		})
		latency := time.Since(start)

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// No call was made; skip to the next provider without
			// polluting the health window.
			attempts = append(attempts, &ProviderError{Provider: name, Err: err})
			return nil, attempts
		}

		hp.RecordAttempt(err == nil, latency)

		if err == nil {
			g.metrics.ProviderRequests.WithLabelValues(name, telemetry.OutcomeSuccess).Inc()
			point := payload.(*market.RawDataPoint)
			point.Ticker = key.Ticker
			point.Kind = key.Kind
			point.Timeframe = key.Timeframe
			point.FetchedAt = g.now()
			point.Provider = name
			point.Primary = name == primaryName
			return point, nil
		}

		attempts = append(attempts, err)
		if IsRateLimited(err) {
			g.metrics.ProviderRequests.WithLabelValues(name, telemetry.OutcomeRateLimited).Inc()
			log.Warn().
				Str("provider", name).
				Str("key", key.String()).
				Msg("rate limited, switching provider")
			return nil, attempts
		}
		g.metrics.ProviderRequests.WithLabelValues(name, telemetry.OutcomeFailure).Inc()
		log.Debug().
			Err(err).
			Str("provider", name).
			Str("key", key.String()).
			Int("attempt", attempt+1).
			Msg("provider fetch failed")

		if ctx.Err() != nil {
			return nil, attempts
		}
	}
	return nil, attempts
}

// dispatch routes a key to the matching capability method and wraps the
// payload in an unattributed RawDataPoint; Fetch fills in attribution.
func (g *Gateway) dispatch(ctx context.Context, p Provider, key market.Key) (*market.RawDataPoint, error) {
	switch key.Kind {
	case market.KindPriceHistory, market.KindBenchmark:
		bars, err := p.FetchBars(ctx, key.Ticker, key.Timeframe)
		if err != nil {
			return nil, err
		}
		return &market.RawDataPoint{Bars: bars}, nil
	case market.KindFundamentals:
		f, err := p.FetchFundamentals(ctx, key.Ticker)
		if err != nil {
			return nil, err
		}
		return &market.RawDataPoint{Fundamentals: f}, nil
	case market.KindOptionsChain:
		chain, err := p.FetchOptionsChain(ctx, key.Ticker)
		if err != nil {
			return nil, err
		}
		return &market.RawDataPoint{Options: chain}, nil
	case market.KindCongressTrades:
		trades, err := p.FetchCongressTrades(ctx, key.Ticker)
		if err != nil {
			return nil, err
		}
		return &market.RawDataPoint{CongressTrades: trades}, nil
	default:
		return nil, fmt.Errorf("%w: %s", market.ErrUnknownDataKind, key.Kind)
	}
}

// orderByHealth sorts candidates by recent error rate, then smoothed
// latency. The sort is stable so configured priority breaks ties.
func (g *Gateway) orderByHealth(candidates []Provider) []Provider {
	out := make([]Provider, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		hi := g.health.Get(out[i].Name())
		hj := g.health.Get(out[j].Name())
		ri, rj := hi.ErrorRate(), hj.ErrorRate()
		if ri != rj {
			return ri < rj
		}
		return hi.Latency() < hj.Latency()
	})
	return out
}

// backoffDelay computes exponential backoff with full jitter on the upper
// half, capped at BackoffMax.
func backoffDelay(s Settings, attempt int) time.Duration {
	d := s.BackoffBase << uint(attempt-1)
	if d > s.BackoffMax || d <= 0 {
		d = s.BackoffMax
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
