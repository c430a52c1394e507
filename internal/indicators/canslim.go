package indicators

import (
	"fmt"
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

// CANSLIM scores the seven O'Neil criteria as booleans; the composite score
// is criteria met out of seven, scaled to 0-100.
type CANSLIM struct {
	cfg config.CANSLIMConfig
}

func NewCANSLIM(cfg config.CANSLIMConfig) *CANSLIM {
	return &CANSLIM{cfg: cfg}
}

func (c *CANSLIM) Name() string { return "canslim" }

func (c *CANSLIM) Requirements() []Requirement {
	return []Requirement{
		{Kind: market.KindFundamentals, Timeframe: market.TimeframeNone},
		{Kind: market.KindPriceHistory, Timeframe: market.TimeframeDaily},
		{Kind: market.KindBenchmark, Timeframe: market.TimeframeDaily},
	}
}

func (c *CANSLIM) Compute(ticker string, asOf time.Time, inputs InputSet) Result {
	point := inputs[market.KindFundamentals]
	if point == nil || point.Fundamentals == nil {
		return Insufficient(c.Name(), ticker, asOf)
	}
	f := point.Fundamentals
	bars := inputs.Bars(market.KindPriceHistory, asOf)
	bench := inputs.Bars(market.KindBenchmark, asOf)

	criteria := map[string]bool{
		"c_current_earnings": gtPtr(f.EarningsQuarterlyGrowth, c.cfg.QuarterlyGrowthMin),
		"a_annual_earnings":  gtPtr(f.EarningsGrowth, c.cfg.AnnualGrowthMin),
		"n_new_highs":        c.nearHigh(f),
		"s_supply_demand":    c.volumeSurge(f),
		"l_leader":           c.leader(bars),
		"i_institutions":     gtPtr(f.HeldPercentInstitutions, c.cfg.InstitutionalMin),
		"m_market_direction": c.marketUptrend(bench),
	}

	met := 0
	factors := make(map[string]float64, len(criteria)+1)
	for name, pass := range criteria {
		if pass {
			met++
			factors[name] = 1
		} else {
			factors[name] = 0
		}
	}
	factors["criteria_met"] = float64(met)

	return Result{
		Ticker:     ticker,
		Indicator:  c.Name(),
		Score:      float64(met) / 7 * 100,
		Label:      fmt.Sprintf("%d/7", met),
		ComputedAt: asOf,
		Factors:    factors,
	}
}

// nearHigh checks the price sits within the configured proximity of the
// 52-week high.
func (c *CANSLIM) nearHigh(f *market.Fundamentals) bool {
	if f.CurrentPrice == nil || f.FiftyTwoWeekHigh == nil || *f.FiftyTwoWeekHigh <= 0 {
		return false
	}
	return *f.CurrentPrice >= *f.FiftyTwoWeekHigh*c.cfg.HighProximity
}

func (c *CANSLIM) volumeSurge(f *market.Fundamentals) bool {
	if f.Volume == nil || f.AverageVolume == nil || *f.AverageVolume <= 0 {
		return false
	}
	return *f.Volume > *f.AverageVolume
}

// leader checks the trailing-year return against the leadership threshold.
func (c *CANSLIM) leader(bars []market.Bar) bool {
	if len(bars) > 252 {
		bars = bars[len(bars)-252:]
	}
	if len(bars) < 2 || bars[0].Close == 0 {
		return false
	}
	ret := bars[len(bars)-1].Close/bars[0].Close - 1
	return ret > c.cfg.ReturnOneYearMin
}

// marketUptrend requires the benchmark above its long SMA. With too little
// benchmark history the market is assumed up rather than failing the run.
func (c *CANSLIM) marketUptrend(bench []market.Bar) bool {
	lookback := c.cfg.MarketSMALookback
	if len(bench) < lookback {
		return true
	}
	closes := make([]float64, len(bench))
	for i, b := range bench {
		closes[i] = b.Close
	}
	return closes[len(closes)-1] > sma(closes, len(closes)-1, lookback)
}

func gtPtr(v *float64, threshold float64) bool {
	return v != nil && *v > threshold
}
