// Package pipeline drives a full analysis run: gather raw data through the
// cache for every engine, score results with data-quality confidence, fold
// them into one composite verdict, and explain the change since last run.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mphinancial/terminal/internal/config"
	"github.com/mphinancial/terminal/internal/confidence"
	"github.com/mphinancial/terminal/internal/data/cache"
	"github.com/mphinancial/terminal/internal/indicators"
	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// Run states, in order. A run only ever moves forward and always ends
// Finalized; degraded data lowers confidence instead of aborting.
const (
	StateCollecting = "collecting"
	StateScoring    = "scoring"
	StateFinalized  = "finalized"
)

// Verdict labels.
const (
	VerdictBuy     = "BUY"
	VerdictNeutral = "NEUTRAL"
	VerdictCash    = "CASH"
)

// FactorDelta explains how one indicator moved between consecutive runs.
type FactorDelta struct {
	Indicator       string  `json:"indicator"`
	ScoreDelta      float64 `json:"score_delta"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	PrevLabel       string  `json:"prev_label"`
	Label           string  `json:"label"`
	LabelChanged    bool    `json:"label_changed"`
}

// CompositeVerdict is the immutable outcome of one run for one ticker.
// PrevRunID links the singly-linked run history used for deltas.
type CompositeVerdict struct {
	Ticker              string                       `json:"ticker"`
	RunID               string                       `json:"run_id"`
	PrevRunID           string                       `json:"prev_run_id,omitempty"`
	Verdict             string                       `json:"verdict"`
	Score               float64                      `json:"score"`
	AggregateConfidence float64                      `json:"aggregate_confidence"`
	ComputedAt          time.Time                    `json:"computed_at"`
	Indicators          map[string]indicators.Result `json:"indicators"`
	Deltas              []FactorDelta                `json:"deltas,omitempty"`
}

// History stores finalized verdicts per ticker. Latest returns nil without
// error when the ticker has no prior run.
type History interface {
	Latest(ctx context.Context, ticker string) (*CompositeVerdict, error)
	Save(ctx context.Context, v *CompositeVerdict) error
}

// Runner owns one configured analysis pipeline.
type Runner struct {
	store     *cache.Store
	engines   []indicators.Engine
	scorer    *confidence.Scorer
	history   History
	metrics   *telemetry.Metrics
	indCfg    config.IndicatorsConfig
	cacheCfg  config.CacheConfig
	pipeCfg   config.PipelineConfig
	benchmark string

	now func() time.Time
}

func NewRunner(store *cache.Store, engines []indicators.Engine, scorer *confidence.Scorer,
	history History, metrics *telemetry.Metrics, cfg *config.Config) *Runner {
	return &Runner{
		store:     store,
		engines:   engines,
		scorer:    scorer,
		history:   history,
		metrics:   metrics,
		indCfg:    cfg.Indicators,
		cacheCfg:  cfg.Cache,
		pipeCfg:   cfg.Pipeline,
		benchmark: cfg.Benchmark,
		now:       time.Now,
	}
}

// Run produces a CompositeVerdict for one ticker. The run is bounded by the
// configured hard timeout; engines that miss it count as insufficient data
// rather than failing the run.
func (r *Runner) Run(ctx context.Context, ticker string) (*CompositeVerdict, error) {
	start := r.now()
	asOf := start

	ctx, cancel := context.WithTimeout(ctx, r.pipeCfg.RunTimeout())
	defer cancel()

	log.Debug().Str("ticker", ticker).Str("state", StateCollecting).Msg("run started")
	results := r.collect(ctx, ticker, asOf)
	log.Debug().Str("ticker", ticker).Str("state", StateScoring).Msg("inputs collected")
	verdict := r.score(ticker, asOf, results)
	if err := r.finalize(ctx, verdict); err != nil {
		return nil, err
	}

	r.metrics.Verdicts.WithLabelValues(verdict.Verdict).Inc()
	r.metrics.RunDuration.Observe(r.now().Sub(start).Seconds())
	log.Info().
		Str("ticker", ticker).
		Str("state", StateFinalized).
		Str("run_id", verdict.RunID).
		Str("verdict", verdict.Verdict).
		Float64("score", verdict.Score).
		Float64("confidence", verdict.AggregateConfidence).
		Msg("run finalized")
	return verdict, nil
}

// collect fans out one goroutine per engine and waits for all of them or
// the run deadline, whichever comes first.
func (r *Runner) collect(ctx context.Context, ticker string, asOf time.Time) map[string]indicators.Result {
	var mu sync.Mutex
	results := make(map[string]indicators.Result, len(r.engines))

	var wg sync.WaitGroup
	for _, eng := range r.engines {
		wg.Add(1)
		go func(eng indicators.Engine) {
			defer wg.Done()
			res := r.computeOne(ctx, eng, ticker, asOf)
			mu.Lock()
			results[eng.Name()] = res
			mu.Unlock()
		}(eng)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]indicators.Result, len(r.engines))
	for _, eng := range r.engines {
		res, ok := results[eng.Name()]
		if !ok {
			res = indicators.Insufficient(eng.Name(), ticker, asOf)
		}
		out[eng.Name()] = res
	}
	return out
}

// computeOne gathers an engine's declared inputs through the cache, runs
// the engine, and attaches data-quality confidence.
func (r *Runner) computeOne(ctx context.Context, eng indicators.Engine, ticker string, asOf time.Time) indicators.Result {
	inputs := make(indicators.InputSet)
	var quality []confidence.Input

	for _, req := range eng.Requirements() {
		key := market.Key{Ticker: ticker, Kind: req.Kind, Timeframe: req.Timeframe}
		if req.Kind == market.KindBenchmark {
			key.Ticker = r.benchmark
		}

		entry, err := r.store.GetOrFetch(ctx, key)
		if err != nil {
			// Every declared requirement is required. An input the cache
			// cannot serve even stale means the engine must not score.
			log.Warn().Err(err).Str("key", key.String()).Str("indicator", eng.Name()).
				Msg("input unavailable, declaring insufficient data")
			return indicators.Insufficient(eng.Name(), ticker, asOf)
		}

		inputs[req.Kind] = entry.Point
		quality = append(quality, confidence.Input{
			Age:          entry.Age(asOf),
			TTL:          r.cacheCfg.TTL(req.Kind),
			MissingRatio: entry.Point.MissingRatio(),
			Fallback:     entry.IsFallback || !entry.Point.Primary,
		})
	}

	res := eng.Compute(ticker, asOf, inputs)
	if res.Label != indicators.LabelInsufficientData {
		res.Confidence = r.scorer.Score(quality)
	}
	return res
}

// score folds indicator results into the verdict. Weights are renormalized
// over the engines that actually produced a score; aggregate confidence is
// the minimum across all engines so one unreliable strategy keeps the
// verdict conservative.
func (r *Runner) score(ticker string, asOf time.Time, results map[string]indicators.Result) *CompositeVerdict {
	var weighted, totalWeight float64
	aggConfidence := 1.0
	for name, res := range results {
		if res.Confidence < aggConfidence {
			aggConfidence = res.Confidence
		}
		w := r.indCfg.Weights[name]
		if w <= 0 || res.Label == indicators.LabelInsufficientData {
			continue
		}
		weighted += w * res.Score
		totalWeight += w
	}

	score := 50.0
	if totalWeight > 0 {
		score = weighted / totalWeight
	}

	verdict := VerdictNeutral
	switch {
	case aggConfidence < r.indCfg.MinConfidence:
		// Not enough trust in the data to act either way.
	case score >= r.indCfg.BuyBand:
		verdict = VerdictBuy
	case score <= r.indCfg.CashBand:
		verdict = VerdictCash
	}

	return &CompositeVerdict{
		Ticker:              ticker,
		RunID:               uuid.NewString(),
		Verdict:             verdict,
		Score:               score,
		AggregateConfidence: aggConfidence,
		ComputedAt:          asOf,
		Indicators:          results,
	}
}

// finalize links the verdict to the previous run, computes deltas, and
// persists it. History failures degrade to a delta-less verdict.
func (r *Runner) finalize(ctx context.Context, v *CompositeVerdict) error {
	prev, err := r.history.Latest(ctx, v.Ticker)
	if err != nil {
		log.Warn().Err(err).Str("ticker", v.Ticker).Msg("history lookup failed")
	}
	if prev != nil {
		v.PrevRunID = prev.RunID
		v.Deltas = computeDeltas(prev, v)
	}

	if err := r.history.Save(ctx, v); err != nil {
		log.Warn().Err(err).Str("ticker", v.Ticker).Msg("history save failed")
	}
	return nil
}

// computeDeltas reports per-indicator movement against the prior run,
// sorted by indicator name for stable output.
func computeDeltas(prev, cur *CompositeVerdict) []FactorDelta {
	deltas := make([]FactorDelta, 0, len(cur.Indicators))
	for name, res := range cur.Indicators {
		p, ok := prev.Indicators[name]
		if !ok {
			continue
		}
		deltas = append(deltas, FactorDelta{
			Indicator:       name,
			ScoreDelta:      res.Score - p.Score,
			ConfidenceDelta: res.Confidence - p.Confidence,
			PrevLabel:       p.Label,
			Label:           res.Label,
			LabelChanged:    p.Label != res.Label,
		})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Indicator < deltas[j].Indicator })
	return deltas
}

// RunBatch analyzes tickers concurrently under the configured worker bound.
// Every requested ticker appears in the returned map.
func (r *Runner) RunBatch(ctx context.Context, tickers []string) map[string]*CompositeVerdict {
	sem := make(chan struct{}, r.pipeCfg.MaxConcurrentTickers)
	var mu sync.Mutex
	out := make(map[string]*CompositeVerdict, len(tickers))

	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := r.Run(ctx, ticker)
			if err != nil {
				log.Error().Err(err).Str("ticker", ticker).Msg("run failed")
			}
			mu.Lock()
			out[ticker] = v
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return out
}
