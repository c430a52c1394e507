package indicators

import (
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

var testAsOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

// trendBars builds a deterministic series ending at testAsOf: start price
// compounded by drift per bar, constant volume, at the given step interval.
func trendBars(n int, start, drift, volume float64, step time.Duration) []market.Bar {
	bars := make([]market.Bar, n)
	price := start
	for i := 0; i < n; i++ {
		ts := testAsOf.Add(-time.Duration(n-1-i) * step)
		bars[i] = market.Bar{
			Timestamp: ts,
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    volume,
		}
		price *= 1 + drift
	}
	return bars
}

func pricePoint(ticker string, tf market.Timeframe, bars []market.Bar) *market.RawDataPoint {
	return &market.RawDataPoint{
		Ticker:    ticker,
		Kind:      market.KindPriceHistory,
		Timeframe: tf,
		FetchedAt: testAsOf,
		Provider:  "test",
		Primary:   true,
		Bars:      bars,
	}
}

func benchPoint(tf market.Timeframe, bars []market.Bar) *market.RawDataPoint {
	return &market.RawDataPoint{
		Ticker:    "SPY",
		Kind:      market.KindBenchmark,
		Timeframe: tf,
		FetchedAt: testAsOf,
		Provider:  "test",
		Primary:   true,
		Bars:      bars,
	}
}

func fundamentalsPoint(ticker string, f *market.Fundamentals) *market.RawDataPoint {
	return &market.RawDataPoint{
		Ticker:       ticker,
		Kind:         market.KindFundamentals,
		FetchedAt:    testAsOf,
		Provider:     "test",
		Primary:      true,
		Fundamentals: f,
	}
}

func indicatorDefaults() config.IndicatorsConfig {
	cfg := config.Default()
	return cfg.Indicators
}
