package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mphinancial/terminal/internal/market"
)

func TestCANSLIMAllCriteriaMet(t *testing.T) {
	c := NewCANSLIM(indicatorDefaults().CANSLIM)
	inputs := InputSet{
		market.KindFundamentals: fundamentalsPoint("ACME", &market.Fundamentals{
			EarningsQuarterlyGrowth: fp(0.3),
			EarningsGrowth:          fp(0.3),
			CurrentPrice:            fp(100),
			FiftyTwoWeekHigh:        fp(105),
			Volume:                  fp(2e6),
			AverageVolume:           fp(1e6),
			HeldPercentInstitutions: fp(0.5),
		}),
		market.KindPriceHistory: pricePoint("ACME", market.TimeframeDaily,
			trendBars(252, 80, 0.001, 1e6, 24*time.Hour)),
		market.KindBenchmark: benchPoint(market.TimeframeDaily,
			trendBars(252, 400, 0.001, 1e6, 24*time.Hour)),
	}

	res := c.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, "7/7", res.Label)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 7.0, res.Factors["criteria_met"])
}

func TestCANSLIMSparseData(t *testing.T) {
	c := NewCANSLIM(indicatorDefaults().CANSLIM)
	inputs := InputSet{
		market.KindFundamentals: fundamentalsPoint("ACME", &market.Fundamentals{}),
	}

	// Only the market-direction assumption passes.
	res := c.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, "1/7", res.Label)
	assert.InDelta(t, 100.0/7, res.Score, 1e-9)
	assert.Equal(t, 1.0, res.Factors["m_market_direction"])
	assert.Equal(t, 0.0, res.Factors["n_new_highs"])
}

func TestCANSLIMMarketDowntrendFailsM(t *testing.T) {
	c := NewCANSLIM(indicatorDefaults().CANSLIM)
	inputs := InputSet{
		market.KindFundamentals: fundamentalsPoint("ACME", &market.Fundamentals{}),
		market.KindBenchmark: benchPoint(market.TimeframeDaily,
			trendBars(252, 400, -0.002, 1e6, 24*time.Hour)),
	}

	res := c.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, "0/7", res.Label)
	assert.Equal(t, 0.0, res.Factors["m_market_direction"])
}

func TestCANSLIMMissingFundamentals(t *testing.T) {
	c := NewCANSLIM(indicatorDefaults().CANSLIM)
	res := c.Compute("ACME", testAsOf, InputSet{})
	assert.Equal(t, LabelInsufficientData, res.Label)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestCANSLIMNewHighProximity(t *testing.T) {
	c := NewCANSLIM(indicatorDefaults().CANSLIM)

	near := &market.Fundamentals{CurrentPrice: fp(86), FiftyTwoWeekHigh: fp(100)}
	far := &market.Fundamentals{CurrentPrice: fp(84), FiftyTwoWeekHigh: fp(100)}

	resNear := c.Compute("ACME", testAsOf, InputSet{market.KindFundamentals: fundamentalsPoint("ACME", near)})
	resFar := c.Compute("ACME", testAsOf, InputSet{market.KindFundamentals: fundamentalsPoint("ACME", far)})
	assert.Equal(t, 1.0, resNear.Factors["n_new_highs"])
	assert.Equal(t, 0.0, resFar.Factors["n_new_highs"])
}
