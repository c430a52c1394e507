package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mphinancial/terminal/internal/config"
)

func testConfig() config.ConfidenceConfig {
	return config.ConfidenceConfig{
		StaleWeight:        0.5,
		MissingWeight:      0.3,
		FallbackPenalty:    0.15,
		Floor:              0.05,
		StaleDecayMultiple: 4,
	}
}

func TestScoreFreshCompleteData(t *testing.T) {
	s := NewScorer(testConfig())
	got := s.Score([]Input{{Age: time.Minute, TTL: 5 * time.Minute}})
	assert.Equal(t, 1.0, got)
}

func TestScoreNoInputs(t *testing.T) {
	s := NewScorer(testConfig())
	assert.Equal(t, 0.0, s.Score(nil))
}

func TestScoreWithinTTLNoStalePenalty(t *testing.T) {
	s := NewScorer(testConfig())
	exactly := s.Score([]Input{{Age: 5 * time.Minute, TTL: 5 * time.Minute}})
	assert.Equal(t, 1.0, exactly)
}

func TestScoreStaleDecay(t *testing.T) {
	s := NewScorer(testConfig())
	ttl := 5 * time.Minute

	// Halfway through the decay horizon (4x TTL past expiry).
	half := s.Score([]Input{{Age: ttl + 10*time.Minute, TTL: ttl}})
	assert.InDelta(t, 1-0.5*0.5, half, 1e-9)

	// Fully decayed and beyond.
	full := s.Score([]Input{{Age: ttl + 20*time.Minute, TTL: ttl}})
	beyond := s.Score([]Input{{Age: ttl + 100*time.Minute, TTL: ttl}})
	assert.InDelta(t, 0.5, full, 1e-9)
	assert.Equal(t, full, beyond)
}

func TestScoreMissingPenalty(t *testing.T) {
	s := NewScorer(testConfig())
	got := s.Score([]Input{{Age: 0, TTL: time.Minute, MissingRatio: 0.5}})
	assert.InDelta(t, 1-0.3*0.5, got, 1e-9)
}

func TestScoreFallbackPenalty(t *testing.T) {
	s := NewScorer(testConfig())
	got := s.Score([]Input{{Age: 0, TTL: time.Minute, Fallback: true}})
	assert.InDelta(t, 0.85, got, 1e-9)
}

func TestScoreWorstInputDominates(t *testing.T) {
	s := NewScorer(testConfig())
	ttl := time.Minute
	got := s.Score([]Input{
		{Age: 0, TTL: ttl, MissingRatio: 0.1},
		{Age: 0, TTL: ttl, MissingRatio: 0.8},
		{Age: 0, TTL: ttl},
	})
	assert.InDelta(t, 1-0.3*0.8, got, 1e-9)
}

func TestScoreSinglePenaltyFloorCap(t *testing.T) {
	cfg := testConfig()
	cfg.MissingWeight = 1
	s := NewScorer(cfg)

	// A lone maxed-out penalty cannot push below the floor.
	got := s.Score([]Input{{Age: 0, TTL: time.Minute, MissingRatio: 1}})
	assert.InDelta(t, cfg.Floor, got, 1e-9)
}

func TestScoreCompoundedPenaltiesClampToZero(t *testing.T) {
	cfg := testConfig()
	cfg.StaleWeight = 0.9
	cfg.MissingWeight = 0.9
	s := NewScorer(cfg)

	ttl := time.Minute
	got := s.Score([]Input{{
		Age:          ttl * 10,
		TTL:          ttl,
		MissingRatio: 1,
		Fallback:     true,
	}})
	assert.Equal(t, 0.0, got)
}

func TestScoreMonotoneInAge(t *testing.T) {
	s := NewScorer(testConfig())
	ttl := 5 * time.Minute

	prev := 2.0
	for age := time.Duration(0); age <= ttl*6; age += time.Minute {
		got := s.Score([]Input{{Age: age, TTL: ttl}})
		require.LessOrEqual(t, got, prev, "age %s", age)
		prev = got
	}
}

func TestScoreMonotoneInMissingRatio(t *testing.T) {
	s := NewScorer(testConfig())

	prev := 2.0
	for r := 0.0; r <= 1.0; r += 0.05 {
		got := s.Score([]Input{{Age: 0, TTL: time.Minute, MissingRatio: r}})
		require.LessOrEqual(t, got, prev, "ratio %f", r)
		prev = got
	}
}
