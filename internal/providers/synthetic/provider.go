// Package synthetic implements a deterministic offline provider. Payloads
// are generated from a seed derived from the ticker symbol, so repeated
// fetches for the same ticker are identical across processes. It backs
// --offline runs and the test suites.
package synthetic

import (
	"context"
	"crypto/md5"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/mphinancial/terminal/internal/market"
)

// Provider generates seeded synthetic payloads for every data kind.
type Provider struct {
	name      string
	trendBias float64
	anchor    time.Time
}

// New creates a provider anchored to a fixed reference date so generated
// series are stable regardless of wall clock.
func New(name string) *Provider {
	return &Provider{
		name:   name,
		anchor: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

// SetTrendBias skews generated price walks up or down (-0.5..0.5).
func (p *Provider) SetTrendBias(bias float64) { p.trendBias = bias }

// SetAnchor pins the last generated bar to a specific date.
func (p *Provider) SetAnchor(t time.Time) { p.anchor = t }

func (p *Provider) Name() string { return p.name }

func (p *Provider) Kinds() []market.DataKind {
	return market.AllKinds()
}

// seedFor derives a stable seed from the ticker symbol.
func seedFor(ticker string) int64 {
	h := md5.Sum([]byte(strings.ToUpper(ticker)))
	var seed int64
	for i := 0; i < 8; i++ {
		seed = seed<<8 | int64(h[i])
	}
	return seed
}

func (p *Provider) rng(ticker, salt string) *rand.Rand {
	return rand.New(rand.NewSource(seedFor(ticker + ":" + salt)))
}

func basePrice(ticker string) float64 {
	s := seedFor(ticker) % 880
	if s < 0 {
		s = -s
	}
	return 20 + float64(s) // 20..900 range, stable per ticker
}

// FetchBars generates a two-year random walk ending at the anchor date.
func (p *Provider) FetchBars(ctx context.Context, ticker string, tf market.Timeframe) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := 24 * time.Hour
	n := 504 // ~2y of trading days
	if tf == market.TimeframeWeekly {
		step = 7 * 24 * time.Hour
		n = 104
	}

	rng := p.rng(ticker, string(tf))
	price := basePrice(ticker)
	vol := 0.02

	bars := make([]market.Bar, 0, n)
	start := p.anchor.Add(-time.Duration(n-1) * step)
	for i := 0; i < n; i++ {
		drift := p.trendBias * vol
		change := rng.NormFloat64()*vol + drift
		open := price
		price = price * (1 + change)
		if price < 1 {
			price = 1
		}
		high := math.Max(open, price) * (1 + rng.Float64()*vol/2)
		low := math.Min(open, price) * (1 - rng.Float64()*vol/2)
		bars = append(bars, market.Bar{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    1e6 * (0.5 + rng.Float64()),
		})
	}
	return bars, nil
}

func f(v float64) *float64 { return &v }

// FetchFundamentals generates a plausible, fully-populated snapshot.
func (p *Provider) FetchFundamentals(ctx context.Context, ticker string) (*market.Fundamentals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := p.rng(ticker, "fundamentals")
	price := basePrice(ticker)
	mcap := price * 1e7 * (1 + rng.Float64()*10)

	return &market.Fundamentals{
		DebtToEquity:            f(rng.Float64() * 150),
		PriceToBook:             f(1 + rng.Float64()*8),
		ReturnOnEquity:          f(0.02 + rng.Float64()*0.28),
		PriceToSales:            f(1 + rng.Float64()*9),
		FreeCashflow:            f(mcap * rng.Float64() * 0.06),
		MarketCap:               f(mcap),
		EarningsGrowth:          f(-0.1 + rng.Float64()*0.6),
		EarningsQuarterlyGrowth: f(-0.2 + rng.Float64()*0.7),
		RevenueGrowth:           f(-0.05 + rng.Float64()*0.4),
		ForwardPE:               f(8 + rng.Float64()*40),
		TrailingPE:              f(10 + rng.Float64()*45),
		ProfitMargins:           f(0.02 + rng.Float64()*0.25),
		CurrentPrice:            f(price),
		TargetMeanPrice:         f(price * (0.9 + rng.Float64()*0.4)),
		ShortPercentOfFloat:     f(rng.Float64() * 0.15),
		RecommendationMean:      f(1.5 + rng.Float64()*2),
		Beta:                    f(0.5 + rng.Float64()),
		FiftyTwoWeekHigh:        f(price * (1 + rng.Float64()*0.2)),
		Volume:                  f(1e6 * (0.5 + rng.Float64())),
		AverageVolume:           f(1e6 * (0.6 + rng.Float64()*0.5)),
		HeldPercentInstitutions: f(0.1 + rng.Float64()*0.7),
	}, nil
}

// FetchOptionsChain generates a chain of monthly expiries around the spot.
func (p *Provider) FetchOptionsChain(ctx context.Context, ticker string) (*market.OptionsChain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := p.rng(ticker, "options")
	spot := basePrice(ticker)
	chain := &market.OptionsChain{Ticker: ticker, SpotPrice: spot, AsOf: p.anchor}

	for m := 1; m <= 3; m++ {
		expiry := p.anchor.AddDate(0, m, 0)
		for s := -3; s <= 3; s++ {
			strike := spot * (1 + float64(s)*0.05)
			for _, typ := range []market.OptionType{market.OptionCall, market.OptionPut} {
				intrinsic := spot - strike
				if typ == market.OptionPut {
					intrinsic = strike - spot
				}
				last := math.Max(intrinsic, 0) + spot*0.01*(1+rng.Float64())
				chain.Contracts = append(chain.Contracts, market.OptionContract{
					Type:         typ,
					Strike:       strike,
					Expiry:       expiry,
					LastPrice:    last,
					Bid:          last * 0.97,
					Ask:          last * 1.03,
					Volume:       math.Floor(rng.Float64() * 2000),
					OpenInterest: math.Floor(rng.Float64() * 8000),
				})
			}
		}
	}
	return chain, nil
}

// FetchCongressTrades generates a small disclosure window, biased toward
// purchases for tickers with an upward seed bias.
func (p *Provider) FetchCongressTrades(ctx context.Context, ticker string) ([]market.CongressTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := p.rng(ticker, "congress")
	members := []struct{ name, party, state string }{
		{"A. Whitfield", "D", "CA"},
		{"R. Calloway", "R", "TX"},
		{"J. Okafor", "D", "NY"},
		{"M. Branson", "R", "FL"},
	}
	amounts := []string{"$1,001 - $15,000", "$15,001 - $50,000", "$50,001 - $100,000"}

	n := rng.Intn(6)
	trades := make([]market.CongressTrade, 0, n)
	for i := 0; i < n; i++ {
		m := members[rng.Intn(len(members))]
		side := market.TradePurchase
		if rng.Float64() < 0.4 {
			side = market.TradeSale
		}
		executed := p.anchor.AddDate(0, 0, -rng.Intn(80)-10)
		trades = append(trades, market.CongressTrade{
			Member:      m.name,
			Party:       m.party,
			State:       m.state,
			Ticker:      strings.ToUpper(ticker),
			Transaction: side,
			Amount:      amounts[rng.Intn(len(amounts))],
			Executed:    executed,
			Disclosed:   executed.AddDate(0, 0, rng.Intn(45)),
		})
	}
	return trades, nil
}
