// Package cache is the read-through layer between indicator input gathering
// and the provider gateway. It owns all cached raw data: per-kind TTLs, an
// LRU bound per kind, stale-entry fallback when the gateway is exhausted,
// and per-key coalescing of concurrent misses.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// Entry wraps a fetched point with expiry bookkeeping. Entries are owned by
// the store; readers never mutate them. A fallback read returns a copy
// flagged IsFallback rather than touching the stored entry.
type Entry struct {
	Point      *market.RawDataPoint
	StoredAt   time.Time
	ExpiresAt  time.Time
	IsFallback bool
}

// Age returns staleness relative to the point's fetch time.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Point.FetchedAt)
}

// Live reports whether the entry is still within TTL.
func (e *Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Fetcher is the outbound dependency, satisfied by providers.Gateway.
type Fetcher interface {
	Fetch(ctx context.Context, key market.Key) (*market.RawDataPoint, error)
}

// Remote is the optional second cache tier consulted between a local miss
// and a gateway call.
type Remote interface {
	Get(ctx context.Context, key market.Key) (*Entry, bool, error)
	Set(ctx context.Context, key market.Key, e *Entry, ttl time.Duration) error
}

// Options configures the store.
type Options struct {
	// TTL returns the lifetime for a data kind. Required.
	TTL func(market.DataKind) time.Duration
	// MaxEntriesPerKind bounds each kind's shard; least-recently-used
	// entries are evicted past it.
	MaxEntriesPerKind int
	// Remote is optional.
	Remote Remote
}

// Store is the cache. One shard per data kind keeps per-key operations on
// different kinds from contending at all; within a shard a single mutex
// serializes bookkeeping while fetches run outside it.
type Store struct {
	fetcher Fetcher
	opts    Options
	metrics *telemetry.Metrics
	shards  map[market.DataKind]*shard
	now     func() time.Time
}

type shard struct {
	mu       sync.Mutex
	entries  map[market.Key]*list.Element
	lru      *list.List // front = most recent
	inflight map[market.Key]*call
}

type lruItem struct {
	key   market.Key
	entry *Entry
}

// call is one in-flight fetch that concurrent misses coalesce onto.
type call struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// New creates a store over a fetcher.
func New(fetcher Fetcher, metrics *telemetry.Metrics, opts Options) (*Store, error) {
	if opts.TTL == nil {
		return nil, fmt.Errorf("cache: TTL function is required")
	}
	if opts.MaxEntriesPerKind <= 0 {
		return nil, fmt.Errorf("cache: MaxEntriesPerKind must be positive, got %d", opts.MaxEntriesPerKind)
	}

	shards := make(map[market.DataKind]*shard, len(market.AllKinds()))
	for _, k := range market.AllKinds() {
		shards[k] = &shard{
			entries:  make(map[market.Key]*list.Element),
			lru:      list.New(),
			inflight: make(map[market.Key]*call),
		}
	}
	return &Store{
		fetcher: fetcher,
		opts:    opts,
		metrics: metrics,
		shards:  shards,
		now:     time.Now,
	}, nil
}

// GetOrFetch returns a live entry, or fetches through the gateway on miss
// or expiry. Concurrent callers for the same key share one outbound fetch.
// When every provider fails and an expired entry exists, that entry is
// served flagged IsFallback; with no entry the gateway error propagates.
func (s *Store) GetOrFetch(ctx context.Context, key market.Key) (*Entry, error) {
	sh, ok := s.shards[key.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrUnknownDataKind, key.Kind)
	}

	sh.mu.Lock()

	if el, ok := sh.entries[key]; ok {
		item := el.Value.(*lruItem)
		if item.entry.Live(s.now()) {
			sh.lru.MoveToFront(el)
			sh.mu.Unlock()
			s.metrics.CacheEvents.WithLabelValues(string(key.Kind), telemetry.CacheHit).Inc()
			return item.entry, nil
		}
	}

	// Miss or expired. Join an in-flight fetch if one exists. Waiters
	// share the owner's outcome wholesale, including a context error when
	// the owning caller is canceled mid-fetch; callers that need the data
	// regardless retry, which starts a fresh fetch since the canceled call
	// has already been cleared from inflight.
	if c, ok := sh.inflight[key]; ok {
		sh.mu.Unlock()
		s.metrics.CacheEvents.WithLabelValues(string(key.Kind), telemetry.CacheCoalesced).Inc()
		select {
		case <-c.done:
			return c.entry, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	sh.inflight[key] = c
	sh.mu.Unlock()
	s.metrics.CacheEvents.WithLabelValues(string(key.Kind), telemetry.CacheMiss).Inc()

	entry, err := s.fill(ctx, sh, key)
	c.entry, c.err = entry, err

	sh.mu.Lock()
	delete(sh.inflight, key)
	sh.mu.Unlock()
	close(c.done)

	return entry, err
}

// fill resolves a miss: remote tier first, then the gateway, then stale
// fallback. Runs outside the shard lock.
func (s *Store) fill(ctx context.Context, sh *shard, key market.Key) (*Entry, error) {
	if s.opts.Remote != nil {
		remote, found, err := s.opts.Remote.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("remote cache read failed")
		} else if found && remote.Live(s.now()) {
			s.metrics.CacheEvents.WithLabelValues(string(key.Kind), telemetry.CacheRemoteHit).Inc()
			s.insert(sh, key, remote)
			return remote, nil
		}
	}

	point, err := s.fetcher.Fetch(ctx, key)
	if err != nil {
		if stale := s.staleEntry(sh, key); stale != nil {
			s.metrics.CacheEvents.WithLabelValues(string(key.Kind), telemetry.CacheStaleFallback).Inc()
			log.Warn().
				Err(err).
				Str("key", key.String()).
				Dur("age", stale.Age(s.now())).
				Msg("serving stale entry after provider exhaustion")
			fallback := *stale
			fallback.IsFallback = true
			return &fallback, nil
		}
		return nil, err
	}

	now := s.now()
	ttl := s.opts.TTL(key.Kind)
	entry := &Entry{
		Point:     point,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	s.insert(sh, key, entry)

	if s.opts.Remote != nil {
		if err := s.opts.Remote.Set(ctx, key, entry, ttl); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("remote cache write failed")
		}
	}
	return entry, nil
}

// staleEntry returns the expired entry for key, if any.
func (s *Store) staleEntry(sh *shard, key market.Key) *Entry {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if el, ok := sh.entries[key]; ok {
		return el.Value.(*lruItem).entry
	}
	return nil
}

// insert stores an entry and enforces the per-kind LRU bound. Eviction is
// lazy: it only happens here, on the insert that crosses the bound.
func (s *Store) insert(sh *shard, key market.Key, entry *Entry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.entries[key]; ok {
		el.Value.(*lruItem).entry = entry
		sh.lru.MoveToFront(el)
		return
	}

	sh.entries[key] = sh.lru.PushFront(&lruItem{key: key, entry: entry})
	for sh.lru.Len() > s.opts.MaxEntriesPerKind {
		oldest := sh.lru.Back()
		if oldest == nil {
			break
		}
		item := oldest.Value.(*lruItem)
		sh.lru.Remove(oldest)
		delete(sh.entries, item.key)
		s.metrics.CacheEvents.WithLabelValues(string(item.key.Kind), telemetry.CacheEvicted).Inc()
	}
}

// KindStats summarizes one kind's shard for the health panel.
type KindStats struct {
	Kind    market.DataKind `json:"kind"`
	Entries int             `json:"entries"`
	Live    int             `json:"live"`
}

// Stats snapshots every shard.
func (s *Store) Stats() []KindStats {
	now := s.now()
	out := make([]KindStats, 0, len(s.shards))
	for _, kind := range market.AllKinds() {
		sh := s.shards[kind]
		sh.mu.Lock()
		st := KindStats{Kind: kind, Entries: len(sh.entries)}
		for _, el := range sh.entries {
			if el.Value.(*lruItem).entry.Live(now) {
				st.Live++
			}
		}
		sh.mu.Unlock()
		out = append(out, st)
	}
	return out
}
