// Package confidence derives a [0,1] data-quality score for an indicator
// result from the raw inputs that fed it: how stale they are, how many
// expected fields were absent, and whether any were served via fallback.
package confidence

import (
	"time"

	"github.com/mphinancial/terminal/internal/config"
)

// Input describes the quality of one raw input that contributed to an
// indicator computation.
type Input struct {
	// Age is time since the point was fetched; TTL is its configured
	// lifetime. Staleness only penalizes past TTL.
	Age time.Duration
	TTL time.Duration
	// MissingRatio is the fraction of expected payload fields absent.
	MissingRatio float64
	// Fallback marks data served by a non-primary provider or from an
	// expired cache entry.
	Fallback bool
}

// Scorer combines the penalty terms with configured weights.
type Scorer struct {
	cfg config.ConfidenceConfig
}

// NewScorer creates a scorer from validated configuration.
func NewScorer(cfg config.ConfidenceConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes confidence over all inputs of one indicator. The worst
// input drives each penalty term: staleness and missing ratio take the max
// across inputs, fallback applies once if any input used it. Each weighted
// term is individually capped so no single penalty can push confidence
// below the configured floor on its own; compounded penalties still can.
// Confidence is monotone non-increasing in age and missing ratio.
func (s *Scorer) Score(inputs []Input) float64 {
	if len(inputs) == 0 {
		return 0
	}

	var worstStale, worstMissing float64
	anyFallback := false
	for _, in := range inputs {
		if f := s.staleFraction(in); f > worstStale {
			worstStale = f
		}
		if in.MissingRatio > worstMissing {
			worstMissing = clamp01(in.MissingRatio)
		}
		if in.Fallback {
			anyFallback = true
		}
	}

	cap := 1 - s.cfg.Floor
	stalePenalty := min(s.cfg.StaleWeight*worstStale, cap)
	missingPenalty := min(s.cfg.MissingWeight*worstMissing, cap)

	fallbackPenalty := 0.0
	if anyFallback {
		fallbackPenalty = min(s.cfg.FallbackPenalty, cap)
	}

	return clamp01(1 - stalePenalty - missingPenalty - fallbackPenalty)
}

// staleFraction maps age to [0,1]: zero within TTL, then linear decay
// reaching 1 at TTL * StaleDecayMultiple past expiry.
func (s *Scorer) staleFraction(in Input) float64 {
	if in.TTL <= 0 || in.Age <= in.TTL {
		return 0
	}
	over := in.Age - in.TTL
	horizon := time.Duration(float64(in.TTL) * s.cfg.StaleDecayMultiple)
	if horizon <= 0 || over >= horizon {
		return 1
	}
	return float64(over) / float64(horizon)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
