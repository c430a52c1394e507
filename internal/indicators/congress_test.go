package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mphinancial/terminal/internal/market"
)

func congressPoint(trades []market.CongressTrade) *market.RawDataPoint {
	return &market.RawDataPoint{
		Ticker:         "ACME",
		Kind:           market.KindCongressTrades,
		FetchedAt:      testAsOf,
		Provider:       "test",
		Primary:        true,
		CongressTrades: trades,
	}
}

func trade(side market.TradeSide, disclosedDaysAgo int) market.CongressTrade {
	return market.CongressTrade{
		Member:      "A. Member",
		Ticker:      "ACME",
		Transaction: side,
		Disclosed:   testAsOf.AddDate(0, 0, -disclosedDaysAgo),
	}
}

func TestCongressNetBuying(t *testing.T) {
	c := NewCongressSignal(indicatorDefaults().Congress)
	inputs := InputSet{
		market.KindCongressTrades: congressPoint([]market.CongressTrade{
			trade(market.TradePurchase, 5),
			trade(market.TradePurchase, 15),
			trade(market.TradePurchase, 30),
			trade(market.TradeSale, 40),
		}),
	}

	res := c.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, LabelBuying, res.Label)
	assert.Equal(t, 75.0, res.Score)
	assert.Equal(t, 3.0, res.Factors["purchases"])
	assert.Equal(t, 4.0, res.Factors["trade_count"])
	assert.Equal(t, 1.0, res.Factors["unique_members"])
}

func TestCongressEmptyWindowIsNeutral(t *testing.T) {
	c := NewCongressSignal(indicatorDefaults().Congress)
	res := c.Compute("ACME", testAsOf, InputSet{
		market.KindCongressTrades: congressPoint(nil),
	})
	assert.Equal(t, LabelNoActivity, res.Label)
	assert.Equal(t, 50.0, res.Score)
}

func TestCongressLookbackWindow(t *testing.T) {
	c := NewCongressSignal(indicatorDefaults().Congress)
	inputs := InputSet{
		market.KindCongressTrades: congressPoint([]market.CongressTrade{
			trade(market.TradeSale, 5),
			// Disclosed outside the 90-day lookback.
			trade(market.TradePurchase, 120),
		}),
	}

	res := c.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, LabelSelling, res.Label)
	assert.Equal(t, 0.0, res.Score)
}

func TestCongressMissingInput(t *testing.T) {
	c := NewCongressSignal(indicatorDefaults().Congress)
	res := c.Compute("ACME", testAsOf, InputSet{})
	assert.Equal(t, LabelInsufficientData, res.Label)
	assert.Equal(t, 0.0, res.Confidence)
}
