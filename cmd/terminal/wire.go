package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/confidence"
	"github.com/mphinancial/terminal/internal/data/cache"
	"github.com/mphinancial/terminal/internal/indicators"
	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/pipeline"
	"github.com/mphinancial/terminal/internal/providers"
	"github.com/mphinancial/terminal/internal/providers/congress"
	"github.com/mphinancial/terminal/internal/providers/quote"
	"github.com/mphinancial/terminal/internal/providers/synthetic"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// app is the assembled process: every shared component constructed once at
// startup and passed down explicitly.
type app struct {
	cfg      *config.Config
	runner   *pipeline.Runner
	health   *telemetry.HealthSet
	store    *cache.Store
	registry *prometheus.Registry

	closers []func() error
}

// buildApp wires providers, gateway, cache, engines, and history from
// configuration. offline swaps every configured provider for the
// deterministic synthetic source.
func buildApp(ctx context.Context, cfg *config.Config, offline bool) (*app, error) {
	a := &app{cfg: cfg, health: telemetry.NewHealthSet(), registry: prometheus.NewRegistry()}
	metrics := telemetry.NewMetrics(a.registry)

	reg := providers.NewRegistry()
	settings := make(map[string]providers.Settings)
	if offline {
		reg.Register(synthetic.New("synthetic"), 0)
	} else {
		for _, pc := range cfg.Providers {
			p, err := buildProvider(pc)
			if err != nil {
				return nil, err
			}
			reg.Register(p, pc.Priority)
			settings[pc.Name] = providerSettings(pc)
		}
	}

	gateway := providers.NewGateway(reg, a.health, metrics, settings)

	opts := cache.Options{TTL: cfg.Cache.TTL, MaxEntriesPerKind: cfg.Cache.MaxEntriesPerKind}
	if addr := cfg.Cache.Redis.Addr; addr != "" && !offline {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		opts.Remote = cache.NewRedisTier(client)
		log.Info().Str("addr", addr).Msg("redis cache tier enabled")
	}

	store, err := cache.New(gateway, metrics, opts)
	if err != nil {
		return nil, err
	}
	a.store = store

	history, err := buildHistory(ctx, cfg, offline, a)
	if err != nil {
		return nil, err
	}

	a.runner = pipeline.NewRunner(store, indicators.All(cfg.Indicators),
		confidence.NewScorer(cfg.Confidence), history, metrics, cfg)
	return a, nil
}

func buildProvider(pc config.ProviderConfig) (providers.Provider, error) {
	kinds := make([]market.DataKind, 0, len(pc.Kinds))
	for _, k := range pc.Kinds {
		kind, err := market.ParseDataKind(k)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}

	switch pc.Type {
	case "quote":
		return providers.Limited(quote.New(pc.Name, pc.BaseURL, pc.Timeout()), kinds), nil
	case "congress":
		return providers.Limited(congress.New(pc.Name, pc.BaseURL, pc.APIKey(), pc.Timeout()), kinds), nil
	case "synthetic":
		return providers.Limited(synthetic.New(pc.Name), kinds), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

func providerSettings(pc config.ProviderConfig) providers.Settings {
	base, max := pc.Backoff()
	return providers.Settings{
		MaxRetries:              pc.MaxRetries,
		BackoffBase:             base,
		BackoffMax:              max,
		RPS:                     pc.RPS,
		Burst:                   pc.Burst,
		CircuitMaxRequests:      uint32(pc.Circuit.MaxRequests),
		CircuitInterval:         time.Duration(pc.Circuit.IntervalSecs) * time.Second,
		CircuitTimeout:          time.Duration(pc.Circuit.TimeoutSecs) * time.Second,
		CircuitFailureThreshold: uint32(pc.Circuit.FailureThreshold),
	}
}

func buildHistory(ctx context.Context, cfg *config.Config, offline bool, a *app) (pipeline.History, error) {
	if cfg.History.PostgresDSN == "" || offline {
		return pipeline.NewMemoryHistory(), nil
	}

	pg, err := pipeline.NewPostgresHistory(ctx, cfg.History.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	log.Info().Msg("postgres verdict history enabled")
	return pg, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close component")
		}
	}
}
