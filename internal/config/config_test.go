package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mphinancial/terminal/internal/market"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terminal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
providers:
  - name: yahoo
    type: quote
    base_url: https://query1.finance.yahoo.com
    kinds: [price_history, fundamentals, options_chain, benchmark]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	p := cfg.Providers[0]
	assert.Equal(t, 2.0, p.RPS)
	assert.Equal(t, 4, p.Burst)
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 5, p.Circuit.FailureThreshold)
	assert.Equal(t, 250*time.Millisecond, mustBase(p))
	assert.Equal(t, 10*time.Second, p.Timeout())

	assert.Equal(t, "SPY", cfg.Benchmark)
	assert.Equal(t, ":8090", cfg.Server.Listen)
	assert.Equal(t, 65.0, cfg.Indicators.BuyBand)
	assert.Equal(t, 35.0, cfg.Indicators.CashBand)
	assert.Equal(t, 0.2, cfg.Indicators.MinConfidence)
	assert.Equal(t, DefaultWeights(), cfg.Indicators.Weights)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.RunTimeout())
}

func mustBase(p ProviderConfig) time.Duration {
	base, _ := p.Backoff()
	return base
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
benchmark: QQQ
indicators:
  buy_band: 70
  weights:
    power_gauge: 1
cache:
  fundamentals_ttl_secs: 60
`))
	require.NoError(t, err)

	assert.Equal(t, "QQQ", cfg.Benchmark)
	assert.Equal(t, 70.0, cfg.Indicators.BuyBand)
	assert.Equal(t, map[string]float64{"power_gauge": 1}, cfg.Indicators.Weights)
	assert.Equal(t, time.Minute, cfg.Cache.TTL(market.KindFundamentals))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"duplicate provider names", func(c *Config) {
			c.Providers = append(c.Providers, c.Providers[0])
		}},
		{"unknown data kind", func(c *Config) {
			c.Providers[0].Kinds = []string{"tea_leaves"}
		}},
		{"missing base_url for remote type", func(c *Config) {
			c.Providers[0].Type = "quote"
			c.Providers[0].BaseURL = ""
		}},
		{"cash band above buy band", func(c *Config) {
			c.Indicators.CashBand = 80
		}},
		{"negative weight", func(c *Config) {
			c.Indicators.Weights["power_gauge"] = -0.1
		}},
		{"all-zero weights", func(c *Config) {
			c.Indicators.Weights = map[string]float64{"power_gauge": 0}
		}},
		{"penalty weights exceed one", func(c *Config) {
			c.Confidence.StaleWeight = 0.8
			c.Confidence.MissingWeight = 0.5
		}},
		{"no providers", func(c *Config) {
			c.Providers = nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCacheTTLPerKind(t *testing.T) {
	c := Default().Cache
	assert.Equal(t, 5*time.Minute, c.TTL(market.KindPriceHistory))
	assert.Equal(t, time.Hour, c.TTL(market.KindFundamentals))
	assert.Equal(t, 5*time.Minute, c.TTL(market.KindOptionsChain))
	assert.Equal(t, 24*time.Hour, c.TTL(market.KindCongressTrades))
	assert.Equal(t, 5*time.Minute, c.TTL(market.KindBenchmark))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "synthetic", cfg.Providers[0].Type)
	assert.Len(t, cfg.Providers[0].Kinds, 5)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_TERMINAL_KEY", "s3cret")
	p := ProviderConfig{APIKeyEnv: "TEST_TERMINAL_KEY"}
	assert.Equal(t, "s3cret", p.APIKey())
	assert.Equal(t, "", ProviderConfig{}.APIKey())
}
