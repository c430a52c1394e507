package indicators

import (
	"time"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/market"
)

// Congressional-signal labels.
const (
	LabelNoActivity = "no-activity"
	LabelBuying     = "net-buying"
	LabelSelling    = "net-selling"
	LabelMixed      = "mixed"
)

// CongressSignal scores disclosed congressional trading inside the lookback
// window: the purchase share of all disclosed transactions, scaled 0-100.
// An empty window is a legitimate neutral answer, not missing data.
type CongressSignal struct {
	cfg config.CongressConfig
}

func NewCongressSignal(cfg config.CongressConfig) *CongressSignal {
	return &CongressSignal{cfg: cfg}
}

func (c *CongressSignal) Name() string { return "congress" }

func (c *CongressSignal) Requirements() []Requirement {
	return []Requirement{
		{Kind: market.KindCongressTrades, Timeframe: market.TimeframeNone},
	}
}

func (c *CongressSignal) Compute(ticker string, asOf time.Time, inputs InputSet) Result {
	point := inputs[market.KindCongressTrades]
	if point == nil {
		return Insufficient(c.Name(), ticker, asOf)
	}

	cutoff := asOf.AddDate(0, 0, -c.cfg.LookbackDays)

	var purchases, sales float64
	members := make(map[string]bool)
	for _, t := range point.CongressTrades {
		if t.Disclosed.After(asOf) || t.Disclosed.Before(cutoff) {
			continue
		}
		switch t.Transaction {
		case market.TradePurchase:
			purchases++
		case market.TradeSale:
			sales++
		default:
			continue
		}
		members[t.Member] = true
	}

	score := 50.0
	label := LabelNoActivity
	if total := purchases + sales; total > 0 {
		score = purchases / total * 100
		switch {
		case purchases > sales:
			label = LabelBuying
		case sales > purchases:
			label = LabelSelling
		default:
			label = LabelMixed
		}
	}

	return Result{
		Ticker:     ticker,
		Indicator:  c.Name(),
		Score:      score,
		Label:      label,
		ComputedAt: asOf,
		Factors: map[string]float64{
			"purchases":      purchases,
			"sales":          sales,
			"trade_count":    purchases + sales,
			"unique_members": float64(len(members)),
		},
	}
}
