package indicators

import (
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

// PowerGauge is the 20-factor composite: four equally weighted categories
// (financials, earnings, experts, technicals) of five factors each, every
// factor normalized to 0-100 with missing inputs scoring neutral.
type PowerGauge struct {
	cfg config.PowerGaugeConfig
}

func NewPowerGauge(cfg config.PowerGaugeConfig) *PowerGauge {
	return &PowerGauge{cfg: cfg}
}

func (g *PowerGauge) Name() string { return "power_gauge" }

func (g *PowerGauge) Requirements() []Requirement {
	return []Requirement{
		{Kind: market.KindFundamentals, Timeframe: market.TimeframeNone},
		{Kind: market.KindPriceHistory, Timeframe: market.TimeframeDaily},
	}
}

func (g *PowerGauge) Compute(ticker string, asOf time.Time, inputs InputSet) Result {
	point := inputs[market.KindFundamentals]
	if point == nil || point.Fundamentals == nil {
		return Insufficient(g.Name(), ticker, asOf)
	}
	f := point.Fundamentals
	bars := inputs.Bars(market.KindPriceHistory, asOf)

	factors := map[string]float64{}
	financials := g.financialFactors(f, factors)
	earnings := g.earningsFactors(f, factors)
	experts := g.expertFactors(f, factors)
	technicals := g.technicalFactors(bars, factors)

	factors["financials"] = financials
	factors["earnings"] = earnings
	factors["experts"] = experts
	factors["technicals"] = technicals

	score := (financials + earnings + experts + technicals) / 4

	label := LabelNeutral
	switch {
	case score >= g.cfg.BullishBand:
		label = LabelBullish
	case score <= g.cfg.BearishBand:
		label = LabelBearish
	}

	return Result{
		Ticker:     ticker,
		Indicator:  g.Name(),
		Score:      score,
		Label:      label,
		ComputedAt: asOf,
		Factors:    factors,
	}
}

// financialFactors scores balance-sheet strength.
func (g *PowerGauge) financialFactors(f *market.Fundamentals, out map[string]float64) float64 {
	out["debt_equity"] = normalize(f.DebtToEquity, 0, 200, true)
	out["price_book"] = normalize(f.PriceToBook, 1, 10, true)
	out["roe"] = normalize(f.ReturnOnEquity, 0.05, 0.25, false)
	out["price_sales"] = normalize(f.PriceToSales, 1, 10, true)

	fcfYield := 0.0
	if f.FreeCashflow != nil && f.MarketCap != nil && *f.MarketCap > 0 {
		fcfYield = *f.FreeCashflow / *f.MarketCap
	}
	out["fcf_yield"] = normalizeVal(fcfYield, 0, 0.05, false)

	return mean([]float64{
		out["debt_equity"], out["price_book"], out["roe"],
		out["price_sales"], out["fcf_yield"],
	})
}

// earningsFactors scores growth and earnings quality.
func (g *PowerGauge) earningsFactors(f *market.Fundamentals, out map[string]float64) float64 {
	out["growth_rate"] = normalize(f.EarningsGrowth, -0.1, 0.5, false)
	out["earnings_surprise"] = normalize(f.EarningsQuarterlyGrowth, -0.2, 0.5, false)
	out["earnings_trend"] = normalize(f.RevenueGrowth, -0.1, 0.4, false)

	// Forward P/E below trailing means expectations are improving.
	if f.ForwardPE != nil && f.TrailingPE != nil && *f.ForwardPE != 0 {
		out["projected_pe"] = normalizeVal(*f.TrailingPE / *f.ForwardPE, 0.8, 1.5, false)
	} else {
		out["projected_pe"] = normalize(f.ForwardPE, 10, 50, true)
	}
	out["consistency"] = normalize(f.ProfitMargins, 0.05, 0.25, false)

	return mean([]float64{
		out["growth_rate"], out["earnings_surprise"], out["earnings_trend"],
		out["projected_pe"], out["consistency"],
	})
}

// expertFactors scores analyst and positioning sentiment.
func (g *PowerGauge) expertFactors(f *market.Fundamentals, out map[string]float64) float64 {
	current := 1.0
	if f.CurrentPrice != nil && *f.CurrentPrice > 0 {
		current = *f.CurrentPrice
	}
	target := current
	if f.TargetMeanPrice != nil {
		target = *f.TargetMeanPrice
	}
	out["analyst_target"] = normalizeVal((target-current)/current, -0.1, 0.3, false)

	si := 0.0
	if f.ShortPercentOfFloat != nil {
		si = *f.ShortPercentOfFloat
	}
	out["short_interest"] = normalizeVal(si, 0, 0.2, true)

	// Insider transaction feeds are unreliable; held neutral.
	out["insider_activity"] = 50

	rec := 3.0
	if f.RecommendationMean != nil {
		rec = *f.RecommendationMean
	}
	out["analyst_rating"] = normalizeVal(rec, 1.5, 3.5, true)

	beta := 1.0
	if f.Beta != nil {
		beta = *f.Beta
	}
	out["industry_relative"] = normalizeVal(beta, 0.5, 1.5, false)

	return mean([]float64{
		out["analyst_target"], out["short_interest"], out["insider_activity"],
		out["analyst_rating"], out["industry_relative"],
	})
}

// technicalFactors scores price and volume action over roughly a year of
// daily bars. Under 50 bars every factor holds neutral.
func (g *PowerGauge) technicalFactors(bars []market.Bar, out map[string]float64) float64 {
	names := []string{"rel_strength", "chaikin_money_flow", "chaikin_trend", "price_trend_roc", "volume_trend"}
	if len(bars) < 50 {
		for _, n := range names {
			out[n] = 50
		}
		return 50
	}

	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	mfv := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
		if spread := b.High - b.Low; spread > 0 {
			mfv[i] = ((b.Close - b.Low) - (b.High - b.Close)) / spread * b.Volume
		}
	}

	// Six-month rate of change as a relative-strength proxy.
	roc126 := 0.0
	if n > 126 && closes[n-126] != 0 {
		roc126 = closes[n-1]/closes[n-126] - 1
	}
	out["rel_strength"] = normalizeVal(roc126, -0.1, 0.3, false)

	// 21-day Chaikin Money Flow.
	var mfvSum, volSum float64
	for i := n - 21; i < n; i++ {
		mfvSum += mfv[i]
		volSum += volumes[i]
	}
	cmf := 0.0
	if volSum > 0 {
		cmf = mfvSum / volSum
	}
	out["chaikin_money_flow"] = normalizeVal(cmf, -0.2, 0.2, false)

	// Chaikin oscillator on the accumulation/distribution line; scored on
	// its 5-sample direction only.
	adl := make([]float64, n)
	adl[0] = mfv[0]
	for i := 1; i < n; i++ {
		adl[i] = adl[i-1] + mfv[i]
	}
	fast, slow := ema(adl, 3), ema(adl, 10)
	osc := make([]float64, n)
	for i := range osc {
		osc[i] = fast[i] - slow[i]
	}
	if osc[n-1]-osc[n-6] > 0 {
		out["chaikin_trend"] = 60
	} else {
		out["chaikin_trend"] = 40
	}

	roc42 := 0.0
	if n > 42 && closes[n-42] != 0 {
		roc42 = closes[n-1]/closes[n-42] - 1
	}
	out["price_trend_roc"] = normalizeVal(roc42, -0.1, 0.2, false)

	volRatio := 1.0
	if n >= 90 {
		vol90 := mean(volumes[n-90:])
		if vol90 > 0 {
			volRatio = mean(volumes[n-20:]) / vol90
		}
	}
	out["volume_trend"] = normalizeVal(volRatio, 0.8, 1.5, false)

	vals := make([]float64, 0, len(names))
	for _, name := range names {
		vals = append(vals, out[name])
	}
	return mean(vals)
}
