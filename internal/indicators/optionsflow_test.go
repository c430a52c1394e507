package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mphinancial/terminal/internal/market"
)

func chainPoint(contracts []market.OptionContract) *market.RawDataPoint {
	return &market.RawDataPoint{
		Ticker:    "ACME",
		Kind:      market.KindOptionsChain,
		FetchedAt: testAsOf,
		Provider:  "test",
		Primary:   true,
		Options: &market.OptionsChain{
			Ticker:    "ACME",
			SpotPrice: 100,
			AsOf:      testAsOf,
			Contracts: contracts,
		},
	}
}

func TestOptionsFlowStronglyBullish(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	expiry := testAsOf.Add(30 * 24 * time.Hour)
	inputs := InputSet{
		market.KindOptionsChain: chainPoint([]market.OptionContract{
			{Type: market.OptionCall, Strike: 105, Expiry: expiry, LastPrice: 2, Volume: 1000, OpenInterest: 100},
			{Type: market.OptionPut, Strike: 95, Expiry: expiry, LastPrice: 1, Volume: 200, OpenInterest: 1000},
		}),
	}

	res := o.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, LabelStronglyBullish, res.Label)
	// Call premium 200k of 220k total.
	assert.InDelta(t, 200.0/220*100, res.Score, 1e-9)
	assert.Equal(t, 1.0, res.Factors["unusual_count"])
	assert.Equal(t, 1.0, res.Factors["volume_bias"])
}

func TestOptionsFlowStronglyBearish(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	expiry := testAsOf.Add(30 * 24 * time.Hour)
	inputs := InputSet{
		market.KindOptionsChain: chainPoint([]market.OptionContract{
			{Type: market.OptionCall, Strike: 105, Expiry: expiry, LastPrice: 1, Volume: 100, OpenInterest: 500},
			{Type: market.OptionPut, Strike: 95, Expiry: expiry, LastPrice: 4, Volume: 800, OpenInterest: 500},
		}),
	}

	res := o.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, LabelStronglyBearish, res.Label)
	assert.Less(t, res.Score, 35.0)
}

func TestOptionsFlowNoFlowIsNeutral(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	res := o.Compute("ACME", testAsOf, InputSet{
		market.KindOptionsChain: chainPoint(nil),
	})
	assert.Equal(t, LabelNeutral, res.Label)
	assert.Equal(t, 50.0, res.Score)
}

func TestOptionsFlowMissingChain(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	res := o.Compute("ACME", testAsOf, InputSet{})
	assert.Equal(t, LabelInsufficientData, res.Label)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestOptionsFlowExpiryWindow(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	inside := testAsOf.Add(30 * 24 * time.Hour)
	outside := testAsOf.Add(180 * 24 * time.Hour)
	expired := testAsOf.Add(-24 * time.Hour)

	inputs := InputSet{
		market.KindOptionsChain: chainPoint([]market.OptionContract{
			{Type: market.OptionCall, Expiry: inside, LastPrice: 2, Volume: 100},
			{Type: market.OptionPut, Expiry: outside, LastPrice: 5, Volume: 5000},
			{Type: market.OptionPut, Expiry: expired, LastPrice: 5, Volume: 5000},
		}),
	}

	// Only the near-dated call counts, so the flow reads bullish.
	res := o.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 0.0, res.Factors["put_volume"])
}

func TestOptionsFlowMidpointWhenNoLastPrice(t *testing.T) {
	o := NewOptionsFlow(indicatorDefaults().Options)
	expiry := testAsOf.Add(30 * 24 * time.Hour)
	inputs := InputSet{
		market.KindOptionsChain: chainPoint([]market.OptionContract{
			{Type: market.OptionCall, Expiry: expiry, Bid: 1, Ask: 3, Volume: 10},
		}),
	}

	res := o.Compute("ACME", testAsOf, inputs)
	assert.Equal(t, 2000.0, res.Factors["call_premium"])
}
