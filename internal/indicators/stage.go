package indicators

import (
	"math"
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

// Stage labels. The classifier resolves every (price vs SMA, slope) cell of
// the table below, so adjacent bands never depend on float heuristics:
//
//	slope > +flat, price > SMA30   -> Stage 2 (Advancing)
//	slope < -flat, price < SMA30   -> Stage 4 (Declining)
//	|slope| <= flat, price >= SMA30 -> Stage 1 (Basing)
//	|slope| <= flat, price < SMA30  -> Stage 4 (Bottoming)
//	anything else                   -> Stage 3 (Topping)
const (
	StageBasing    = "Stage 1 (Basing)"
	StageAdvancing = "Stage 2 (Advancing)"
	StageTopping   = "Stage 3 (Topping)"
	StageDeclining = "Stage 4 (Declining)"
	StageBottoming = "Stage 4 (Bottoming)"
)

// StageClassifier implements Weinstein stage analysis over weekly bars:
// price against the 30-week SMA, the SMA's 4-week slope, and Mansfield
// relative strength against the benchmark.
type StageClassifier struct {
	cfg config.StageConfig
}

func NewStageClassifier(cfg config.StageConfig) *StageClassifier {
	return &StageClassifier{cfg: cfg}
}

func (s *StageClassifier) Name() string { return "stage" }

func (s *StageClassifier) Requirements() []Requirement {
	return []Requirement{
		{Kind: market.KindPriceHistory, Timeframe: market.TimeframeWeekly},
		{Kind: market.KindBenchmark, Timeframe: market.TimeframeWeekly},
	}
}

func (s *StageClassifier) Compute(ticker string, asOf time.Time, inputs InputSet) Result {
	bars := inputs.Bars(market.KindPriceHistory, asOf)
	if len(bars) < 30 {
		return Insufficient(s.Name(), ticker, asOf)
	}

	n := len(bars)
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	price := closes[n-1]
	sma30 := sma(closes, n-1, 30)

	slope := 0.0
	if n > 34 {
		prev := sma(closes, n-5, 30)
		if prev != 0 {
			slope = (sma30 - prev) / prev
		}
	}

	label := s.classify(price, sma30, slope)

	result := Result{
		Ticker:     ticker,
		Indicator:  s.Name(),
		Score:      s.score(label),
		Label:      label,
		ComputedAt: asOf,
		Factors: map[string]float64{
			"price":  price,
			"sma_30": sma30,
			"slope":  slope,
		},
	}

	if rs, ok := mansfieldRS(closes, inputs.Bars(market.KindBenchmark, asOf)); ok {
		result.Factors["mansfield_rs"] = rs
	}
	return result
}

func (s *StageClassifier) classify(price, sma30, slope float64) string {
	flat := s.cfg.SlopeFlat
	switch {
	case price > sma30 && slope > flat:
		return StageAdvancing
	case price < sma30 && slope < -flat:
		return StageDeclining
	case math.Abs(slope) <= flat && price >= sma30:
		return StageBasing
	case math.Abs(slope) <= flat:
		return StageBottoming
	default:
		return StageTopping
	}
}

func (s *StageClassifier) score(label string) float64 {
	switch label {
	case StageBasing:
		return s.cfg.Stage1Score
	case StageAdvancing:
		return s.cfg.Stage2Score
	case StageTopping:
		return s.cfg.Stage3Score
	default:
		return s.cfg.Stage4Score
	}
}

// mansfieldRS computes (stock/benchmark ratio) / SMA52(ratio) - 1 over the
// trailing aligned weeks. Needs 52 aligned samples.
func mansfieldRS(closes []float64, bench []market.Bar) (float64, bool) {
	n := len(closes)
	if len(bench) < n {
		n = len(bench)
	}
	if n < 52 {
		return 0, false
	}

	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		b := bench[len(bench)-n+i].Close
		if b == 0 {
			return 0, false
		}
		ratio[i] = closes[len(closes)-n+i] / b
	}
	base := sma(ratio, n-1, 52)
	if base == 0 {
		return 0, false
	}
	return ratio[n-1]/base - 1, true
}
