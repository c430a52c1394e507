package market

import (
	"errors"
	"fmt"
	"time"
)

// DataKind identifies a category of raw market data served by providers.
type DataKind string

const (
	KindPriceHistory   DataKind = "price_history"
	KindFundamentals   DataKind = "fundamentals"
	KindOptionsChain   DataKind = "options_chain"
	KindCongressTrades DataKind = "congress_trades"
	KindBenchmark      DataKind = "benchmark"
)

// ErrUnknownDataKind is a configuration-level failure: callers asked for a
// kind the system was never set up to serve.
var ErrUnknownDataKind = errors.New("unknown data kind")

// AllKinds lists every data kind in a stable order.
func AllKinds() []DataKind {
	return []DataKind{
		KindPriceHistory,
		KindFundamentals,
		KindOptionsChain,
		KindCongressTrades,
		KindBenchmark,
	}
}

// ParseDataKind validates a kind string from configuration.
func ParseDataKind(s string) (DataKind, error) {
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataKind, s)
}

// Timeframe is the bar interval a price series was sampled at.
type Timeframe string

const (
	TimeframeDaily  Timeframe = "1d"
	TimeframeWeekly Timeframe = "1wk"
	TimeframeNone   Timeframe = ""
)

// Key addresses one cacheable unit of raw data.
type Key struct {
	Ticker    string
	Kind      DataKind
	Timeframe Timeframe
}

func (k Key) String() string {
	if k.Timeframe == TimeframeNone {
		return fmt.Sprintf("%s:%s", k.Ticker, k.Kind)
	}
	return fmt.Sprintf("%s:%s:%s", k.Ticker, k.Kind, k.Timeframe)
}

// Bar is one OHLCV sample.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Fundamentals carries the point-in-time fundamental snapshot for a ticker.
// Fields are pointers because providers routinely omit them; the missing
// ratio feeds confidence scoring.
type Fundamentals struct {
	DebtToEquity            *float64 `json:"debt_to_equity,omitempty"`
	PriceToBook             *float64 `json:"price_to_book,omitempty"`
	ReturnOnEquity          *float64 `json:"return_on_equity,omitempty"`
	PriceToSales            *float64 `json:"price_to_sales,omitempty"`
	FreeCashflow            *float64 `json:"free_cashflow,omitempty"`
	MarketCap               *float64 `json:"market_cap,omitempty"`
	EarningsGrowth          *float64 `json:"earnings_growth,omitempty"`
	EarningsQuarterlyGrowth *float64 `json:"earnings_quarterly_growth,omitempty"`
	RevenueGrowth           *float64 `json:"revenue_growth,omitempty"`
	ForwardPE               *float64 `json:"forward_pe,omitempty"`
	TrailingPE              *float64 `json:"trailing_pe,omitempty"`
	ProfitMargins           *float64 `json:"profit_margins,omitempty"`
	CurrentPrice            *float64 `json:"current_price,omitempty"`
	TargetMeanPrice         *float64 `json:"target_mean_price,omitempty"`
	ShortPercentOfFloat     *float64 `json:"short_percent_of_float,omitempty"`
	RecommendationMean      *float64 `json:"recommendation_mean,omitempty"`
	Beta                    *float64 `json:"beta,omitempty"`
	FiftyTwoWeekHigh        *float64 `json:"fifty_two_week_high,omitempty"`
	Volume                  *float64 `json:"volume,omitempty"`
	AverageVolume           *float64 `json:"average_volume,omitempty"`
	HeldPercentInstitutions *float64 `json:"held_percent_institutions,omitempty"`
}

// fields returns every optional field in declaration order.
func (f *Fundamentals) fields() []*float64 {
	return []*float64{
		f.DebtToEquity, f.PriceToBook, f.ReturnOnEquity, f.PriceToSales,
		f.FreeCashflow, f.MarketCap, f.EarningsGrowth, f.EarningsQuarterlyGrowth,
		f.RevenueGrowth, f.ForwardPE, f.TrailingPE, f.ProfitMargins,
		f.CurrentPrice, f.TargetMeanPrice, f.ShortPercentOfFloat,
		f.RecommendationMean, f.Beta, f.FiftyTwoWeekHigh, f.Volume,
		f.AverageVolume, f.HeldPercentInstitutions,
	}
}

// MissingRatio reports the fraction of expected fields the provider omitted.
func (f *Fundamentals) MissingRatio() float64 {
	if f == nil {
		return 1.0
	}
	all := f.fields()
	missing := 0
	for _, p := range all {
		if p == nil {
			missing++
		}
	}
	return float64(missing) / float64(len(all))
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// OptionContract is one listed contract from a chain snapshot.
type OptionContract struct {
	Type         OptionType `json:"type"`
	Strike       float64    `json:"strike"`
	Expiry       time.Time  `json:"expiry"`
	LastPrice    float64    `json:"last_price"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Volume       float64    `json:"volume"`
	OpenInterest float64    `json:"open_interest"`
}

// OptionsChain is a point-in-time snapshot of all near-dated contracts.
type OptionsChain struct {
	Ticker    string           `json:"ticker"`
	SpotPrice float64          `json:"spot_price"`
	AsOf      time.Time        `json:"as_of"`
	Contracts []OptionContract `json:"contracts"`
}

// TradeSide is the disclosed transaction direction.
type TradeSide string

const (
	TradePurchase TradeSide = "purchase"
	TradeSale     TradeSide = "sale"
)

// CongressTrade is one disclosed congressional transaction. Disclosures lag
// execution by up to 45 days under the STOCK Act.
type CongressTrade struct {
	Member      string    `json:"member"`
	Party       string    `json:"party"`
	State       string    `json:"state"`
	Ticker      string    `json:"ticker"`
	Transaction TradeSide `json:"transaction"`
	Amount      string    `json:"amount"`
	Executed    time.Time `json:"executed"`
	Disclosed   time.Time `json:"disclosed"`
}

// RawDataPoint is an immutable fetched payload tagged with its origin.
// Exactly one payload field is populated, matching Kind.
type RawDataPoint struct {
	Ticker    string    `json:"ticker"`
	Kind      DataKind  `json:"kind"`
	Timeframe Timeframe `json:"timeframe"`
	FetchedAt time.Time `json:"fetched_at"`

	// Provider attribution. Primary is false when the point was served by a
	// lower-priority provider after the preferred one failed; confidence
	// scoring penalizes that.
	Provider string `json:"provider"`
	Primary  bool   `json:"primary"`

	Bars           []Bar           `json:"bars,omitempty"`
	Fundamentals   *Fundamentals   `json:"fundamentals,omitempty"`
	Options        *OptionsChain   `json:"options,omitempty"`
	CongressTrades []CongressTrade `json:"congress_trades,omitempty"`
}

// Key returns the cache key this point belongs under.
func (p *RawDataPoint) Key() Key {
	return Key{Ticker: p.Ticker, Kind: p.Kind, Timeframe: p.Timeframe}
}

// MissingRatio estimates payload completeness for confidence scoring.
// Series payloads are scored on presence, fundamentals on field coverage.
func (p *RawDataPoint) MissingRatio() float64 {
	switch p.Kind {
	case KindFundamentals:
		return p.Fundamentals.MissingRatio()
	case KindPriceHistory, KindBenchmark:
		if len(p.Bars) == 0 {
			return 1.0
		}
		return 0.0
	case KindOptionsChain:
		if p.Options == nil || len(p.Options.Contracts) == 0 {
			return 1.0
		}
		return 0.0
	case KindCongressTrades:
		// An empty disclosure window is a valid answer, not missing data.
		return 0.0
	default:
		return 1.0
	}
}
