// Package indicators holds the pure scoring engines. Every engine is a
// deterministic function of its declared raw inputs and an as-of time, so
// a re-run over the same data reproduces the same result bit for bit.
package indicators

import (
	"time"

	"github.com/mphinancial/terminal/internal/market"
)

// Labels shared across engines.
const (
	LabelInsufficientData = "insufficient-data"
	LabelBullish          = "BULLISH"
	LabelBearish          = "BEARISH"
	LabelNeutral          = "NEUTRAL"
)

// Requirement declares one raw input an engine needs before it can run.
type Requirement struct {
	Kind      market.DataKind
	Timeframe market.Timeframe
}

// InputSet carries the raw data gathered for one engine invocation, keyed
// by kind. A missing or nil entry means the fetch failed upstream.
type InputSet map[market.DataKind]*market.RawDataPoint

// Bars returns the bar series for a kind, filtered to samples at or before
// asOf so every engine in a run scores against the same snapshot.
func (in InputSet) Bars(kind market.DataKind, asOf time.Time) []market.Bar {
	p := in[kind]
	if p == nil {
		return nil
	}
	bars := p.Bars
	for len(bars) > 0 && bars[len(bars)-1].Timestamp.After(asOf) {
		bars = bars[:len(bars)-1]
	}
	return bars
}

// Result is one engine's immutable output for a (ticker, run) pair.
// Confidence is filled in afterwards by the data-quality scorer; engines
// only set it when declaring insufficient data.
type Result struct {
	Ticker     string             `json:"ticker"`
	Indicator  string             `json:"indicator"`
	Score      float64            `json:"score"`
	Label      string             `json:"label"`
	ComputedAt time.Time          `json:"computed_at"`
	Confidence float64            `json:"confidence"`
	Factors    map[string]float64 `json:"factors,omitempty"`
}

// Engine is the common capability every indicator implements.
type Engine interface {
	Name() string
	Requirements() []Requirement
	Compute(ticker string, asOf time.Time, inputs InputSet) Result
}

// Insufficient builds the degraded result an engine returns when a required
// input is absent. It is a first-class outcome, not an error.
func Insufficient(name, ticker string, asOf time.Time) Result {
	return Result{
		Ticker:     ticker,
		Indicator:  name,
		Score:      0,
		Label:      LabelInsufficientData,
		ComputedAt: asOf,
		Confidence: 0,
	}
}
