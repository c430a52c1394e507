package indicators

import (
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

// Options-flow sentiment labels.
const (
	LabelStronglyBullish = "STRONGLY BULLISH"
	LabelStronglyBearish = "STRONGLY BEARISH"
)

// OptionsFlow reads near-dated chain activity as a positioning signal.
// Premium is last price times volume times the 100-share multiplier; the
// call share of total premium becomes the 0-100 score.
type OptionsFlow struct {
	cfg config.OptionsConfig
}

func NewOptionsFlow(cfg config.OptionsConfig) *OptionsFlow {
	return &OptionsFlow{cfg: cfg}
}

func (o *OptionsFlow) Name() string { return "options_sentiment" }

func (o *OptionsFlow) Requirements() []Requirement {
	return []Requirement{
		{Kind: market.KindOptionsChain, Timeframe: market.TimeframeNone},
	}
}

func (o *OptionsFlow) Compute(ticker string, asOf time.Time, inputs InputSet) Result {
	point := inputs[market.KindOptionsChain]
	if point == nil || point.Options == nil {
		return Insufficient(o.Name(), ticker, asOf)
	}

	horizon := asOf.AddDate(0, 0, o.cfg.MaxExpiryDays)

	var callPremium, putPremium, callVolume, putVolume, unusual float64
	for _, c := range point.Options.Contracts {
		if c.Expiry.Before(asOf) || c.Expiry.After(horizon) {
			continue
		}
		price := c.LastPrice
		if price == 0 {
			price = (c.Bid + c.Ask) / 2
		}
		premium := price * c.Volume * 100

		switch c.Type {
		case market.OptionCall:
			callPremium += premium
			callVolume += c.Volume
		case market.OptionPut:
			putPremium += premium
			putVolume += c.Volume
		}
		if c.OpenInterest > 0 && c.Volume > o.cfg.UnusualVolumeOI*c.OpenInterest {
			unusual++
		}
	}

	net := callPremium - putPremium
	pcVolume := putVolume / maxf(callVolume, 1)
	pcPremium := putPremium / maxf(callPremium, 1)

	// Volume bias: +1 call-heavy, -1 put-heavy, 0 balanced.
	bias := 0.0
	switch {
	case pcVolume > o.cfg.PutHeavyRatio:
		bias = -1
	case pcVolume < o.cfg.CallHeavyRatio:
		bias = 1
	}

	score := 50.0
	label := LabelNeutral
	if callPremium+putPremium > 0 {
		score = callPremium / (callPremium + putPremium) * 100
		label = o.sentiment(net, pcPremium)
	}

	return Result{
		Ticker:     ticker,
		Indicator:  o.Name(),
		Score:      score,
		Label:      label,
		ComputedAt: asOf,
		Factors: map[string]float64{
			"call_premium":     callPremium,
			"put_premium":      putPremium,
			"net_premium":      net,
			"call_volume":      callVolume,
			"put_volume":       putVolume,
			"pc_volume_ratio":  pcVolume,
			"pc_premium_ratio": pcPremium,
			"volume_bias":      bias,
			"unusual_count":    unusual,
		},
	}
}

func (o *OptionsFlow) sentiment(netPremium, pcPremium float64) string {
	if netPremium > 0 {
		if pcPremium < o.cfg.PCStrongBullMax {
			return LabelStronglyBullish
		}
		return LabelBullish
	}
	if pcPremium > o.cfg.PCStrongBearMin {
		return LabelStronglyBearish
	}
	return LabelBearish
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
