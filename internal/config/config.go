package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mphinancial/terminal/internal/market"
)

// Config is the full startup configuration. Invalid configuration is fatal
// at load time; nothing here is re-validated on the hot path.
type Config struct {
	Providers  []ProviderConfig `yaml:"providers" validate:"min=1,dive"`
	Cache      CacheConfig      `yaml:"cache"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Indicators IndicatorsConfig `yaml:"indicators"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	History    HistoryConfig    `yaml:"history"`
	Server     ServerConfig     `yaml:"server"`
	Benchmark  string           `yaml:"benchmark" default:"SPY" validate:"required"`
}

// ProviderConfig configures one registered data provider.
type ProviderConfig struct {
	Name      string   `yaml:"name" validate:"required"`
	Type      string   `yaml:"type" validate:"oneof=quote congress synthetic"`
	BaseURL   string   `yaml:"base_url"`
	APIKeyEnv string   `yaml:"api_key_env"`
	Priority  int      `yaml:"priority" validate:"gte=0"`
	Kinds     []string `yaml:"kinds" validate:"min=1"`

	RPS           float64 `yaml:"rps" default:"2" validate:"gt=0"`
	Burst         int     `yaml:"burst" default:"4" validate:"gte=1"`
	MaxRetries    int     `yaml:"max_retries" default:"3" validate:"gte=0"`
	BackoffBaseMS int     `yaml:"backoff_base_ms" default:"250" validate:"gte=1"`
	BackoffMaxMS  int     `yaml:"backoff_max_ms" default:"8000" validate:"gte=1"`
	TimeoutMS     int     `yaml:"timeout_ms" default:"10000" validate:"gte=1"`

	Circuit CircuitConfig `yaml:"circuit"`
}

// CircuitConfig tunes the per-provider breaker.
type CircuitConfig struct {
	MaxRequests      int `yaml:"max_requests" default:"2" validate:"gte=1"`
	IntervalSecs     int `yaml:"interval_secs" default:"60" validate:"gte=1"`
	TimeoutSecs      int `yaml:"timeout_secs" default:"30" validate:"gte=1"`
	FailureThreshold int `yaml:"failure_threshold" default:"5" validate:"gte=1"`
}

// CacheConfig sets per-kind TTLs and the LRU bound. TTLs default to the
// cadence the upstream data actually changes at: intraday series refresh in
// minutes, fundamentals hourly, disclosures daily.
type CacheConfig struct {
	PriceHistoryTTLSecs int `yaml:"price_history_ttl_secs" default:"300" validate:"gte=1"`
	FundamentalsTTLSecs int `yaml:"fundamentals_ttl_secs" default:"3600" validate:"gte=1"`
	OptionsTTLSecs      int `yaml:"options_ttl_secs" default:"300" validate:"gte=1"`
	CongressTTLSecs     int `yaml:"congress_ttl_secs" default:"86400" validate:"gte=1"`
	BenchmarkTTLSecs    int `yaml:"benchmark_ttl_secs" default:"300" validate:"gte=1"`

	MaxEntriesPerKind int `yaml:"max_entries_per_kind" default:"512" validate:"gte=1"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the optional remote warm tier when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// TTL returns the configured lifetime for a data kind.
func (c CacheConfig) TTL(kind market.DataKind) time.Duration {
	secs := 0
	switch kind {
	case market.KindPriceHistory:
		secs = c.PriceHistoryTTLSecs
	case market.KindFundamentals:
		secs = c.FundamentalsTTLSecs
	case market.KindOptionsChain:
		secs = c.OptionsTTLSecs
	case market.KindCongressTrades:
		secs = c.CongressTTLSecs
	case market.KindBenchmark:
		secs = c.BenchmarkTTLSecs
	}
	return time.Duration(secs) * time.Second
}

// ConfidenceConfig weights the data-quality penalties.
type ConfidenceConfig struct {
	StaleWeight   float64 `yaml:"stale_weight" default:"0.5" validate:"gte=0,lte=1"`
	MissingWeight float64 `yaml:"missing_weight" default:"0.3" validate:"gte=0,lte=1"`
	// FallbackPenalty is a flat deduction applied once if any contributing
	// input was served by a non-primary provider or a stale cache entry.
	FallbackPenalty float64 `yaml:"fallback_penalty" default:"0.15" validate:"gte=0,lte=1"`
	// Floor bounds how far any single penalty can push confidence down on
	// its own. Compounding penalties may still land below it.
	Floor float64 `yaml:"floor" default:"0.05" validate:"gte=0,lte=1"`
	// StaleDecayMultiple stretches the linear staleness decay: confidence
	// contribution reaches zero at TTL * multiple past expiry.
	StaleDecayMultiple float64 `yaml:"stale_decay_multiple" default:"4" validate:"gt=0"`
}

// IndicatorsConfig carries every tunable threshold the indicator engines and
// verdict scoring use. Defaults reproduce the documented methodology tables.
type IndicatorsConfig struct {
	// Weights drive the composite verdict. Indicators absent from the map
	// contribute confidence but not score.
	Weights map[string]float64 `yaml:"weights"`

	BuyBand  float64 `yaml:"buy_band" default:"65" validate:"gte=0,lte=100"`
	CashBand float64 `yaml:"cash_band" default:"35" validate:"gte=0,lte=100"`
	// MinConfidence forces a NEUTRAL verdict when aggregate confidence
	// drops below it, regardless of scores.
	MinConfidence float64 `yaml:"min_confidence" default:"0.2" validate:"gte=0,lte=1"`

	PowerGauge PowerGaugeConfig `yaml:"power_gauge"`
	Stage      StageConfig      `yaml:"stage"`
	CANSLIM    CANSLIMConfig    `yaml:"canslim"`
	Options    OptionsConfig    `yaml:"options"`
	Congress   CongressConfig   `yaml:"congress"`
}

// PowerGaugeConfig holds the rating bands for the 20-factor model.
type PowerGaugeConfig struct {
	BullishBand float64 `yaml:"bullish_band" default:"65" validate:"gte=0,lte=100"`
	BearishBand float64 `yaml:"bearish_band" default:"35" validate:"gte=0,lte=100"`
}

// StageConfig holds the stage-classification threshold table. SlopeFlat is
// the 4-week SMA slope magnitude below which the trend counts as flat; the
// score map converts a stage label into the 0-100 composite contribution.
type StageConfig struct {
	SlopeFlat   float64 `yaml:"slope_flat" default:"0.01" validate:"gt=0"`
	Stage1Score float64 `yaml:"stage1_score" default:"60" validate:"gte=0,lte=100"`
	Stage2Score float64 `yaml:"stage2_score" default:"85" validate:"gte=0,lte=100"`
	Stage3Score float64 `yaml:"stage3_score" default:"40" validate:"gte=0,lte=100"`
	Stage4Score float64 `yaml:"stage4_score" default:"15" validate:"gte=0,lte=100"`
}

// CANSLIMConfig holds the seven criteria thresholds.
type CANSLIMConfig struct {
	QuarterlyGrowthMin float64 `yaml:"quarterly_growth_min" default:"0.25"`
	AnnualGrowthMin    float64 `yaml:"annual_growth_min" default:"0.25"`
	HighProximity      float64 `yaml:"high_proximity" default:"0.85" validate:"gt=0,lte=1"`
	ReturnOneYearMin   float64 `yaml:"return_one_year_min" default:"0.2"`
	InstitutionalMin   float64 `yaml:"institutional_min" default:"0.3" validate:"gte=0,lte=1"`
	MarketSMALookback  int     `yaml:"market_sma_lookback" default:"200" validate:"gte=1"`
}

// OptionsConfig holds the flow-sentiment thresholds.
type OptionsConfig struct {
	MaxExpiryDays   int     `yaml:"max_expiry_days" default:"90" validate:"gte=1"`
	PCStrongBullMax float64 `yaml:"pc_strong_bull_max" default:"0.7" validate:"gt=0"`
	PCStrongBearMin float64 `yaml:"pc_strong_bear_min" default:"1.5" validate:"gt=0"`
	PutHeavyRatio   float64 `yaml:"put_heavy_ratio" default:"1.2" validate:"gt=0"`
	CallHeavyRatio  float64 `yaml:"call_heavy_ratio" default:"0.8" validate:"gt=0"`
	UnusualVolumeOI float64 `yaml:"unusual_volume_oi" default:"2" validate:"gt=0"`
}

// CongressConfig bounds the disclosure lookback window.
type CongressConfig struct {
	LookbackDays int `yaml:"lookback_days" default:"90" validate:"gte=1"`
}

// PipelineConfig bounds aggregator concurrency and the hard run timeout.
type PipelineConfig struct {
	RunTimeoutSecs       int `yaml:"run_timeout_secs" default:"30" validate:"gte=1"`
	MaxConcurrentTickers int `yaml:"max_concurrent_tickers" default:"4" validate:"gte=1"`
}

// HistoryConfig selects the verdict-history backend. Empty DSN keeps the
// in-memory store.
type HistoryConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ServerConfig configures the health-panel HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen" default:":8090" validate:"required"`
}

// Default returns the built-in configuration: a synthetic offline provider
// and methodology-default thresholds.
func Default() *Config {
	cfg := &Config{
		Providers: []ProviderConfig{{
			Name:     "synthetic",
			Type:     "synthetic",
			Priority: 0,
			Kinds: []string{
				string(market.KindPriceHistory),
				string(market.KindFundamentals),
				string(market.KindOptionsChain),
				string(market.KindCongressTrades),
				string(market.KindBenchmark),
			},
		}},
	}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("built-in config defaults: %v", err))
	}
	cfg.Indicators.Weights = DefaultWeights()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("built-in config invalid: %v", err))
	}
	return cfg
}

// DefaultWeights is the documented verdict weighting: the three core
// strategies carry the score, flow and congress signals gate confidence only.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"power_gauge":       0.40,
		"stage":             0.30,
		"canslim":           0.30,
		"options_sentiment": 0,
		"congress":          0,
	}
}

// Load reads a YAML config file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(cfg.Indicators.Weights) == 0 {
		cfg.Indicators.Weights = DefaultWeights()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces structural rules plus the cross-field invariants the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		for _, k := range p.Kinds {
			if _, err := market.ParseDataKind(k); err != nil {
				return fmt.Errorf("provider %q: %w", p.Name, err)
			}
		}
		if p.Type != "synthetic" && p.BaseURL == "" {
			return fmt.Errorf("provider %q: base_url is required for type %q", p.Name, p.Type)
		}
	}

	for name, w := range c.Indicators.Weights {
		if w < 0 {
			return fmt.Errorf("indicator weight %q must be >= 0", name)
		}
	}
	sum := 0.0
	for _, w := range c.Indicators.Weights {
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("indicator weights must sum to a positive value")
	}

	if c.Indicators.CashBand >= c.Indicators.BuyBand {
		return fmt.Errorf("cash_band (%.1f) must be below buy_band (%.1f)",
			c.Indicators.CashBand, c.Indicators.BuyBand)
	}
	if c.Confidence.StaleWeight+c.Confidence.MissingWeight > 1 {
		return fmt.Errorf("stale_weight + missing_weight must not exceed 1")
	}
	return nil
}

// APIKey resolves a provider's API key from its configured env var.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Backoff returns the retry backoff bounds.
func (p ProviderConfig) Backoff() (base, max time.Duration) {
	return time.Duration(p.BackoffBaseMS) * time.Millisecond,
		time.Duration(p.BackoffMaxMS) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// RunTimeout returns the hard per-run deadline.
func (p PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(p.RunTimeoutSecs) * time.Second
}
