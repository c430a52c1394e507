package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mphinancial/terminal/internal/market"
)

// redisEntry is the wire form of an Entry in Redis. Expiry is carried in
// the payload rather than relying solely on the Redis key TTL so a reader
// can tell a live entry from one Redis kept past our TTL.
type redisEntry struct {
	Point     *market.RawDataPoint `json:"point"`
	StoredAt  time.Time            `json:"stored_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// RedisTier implements Remote over a shared Redis instance, letting several
// terminal processes reuse each other's fetches.
type RedisTier struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTier wraps an existing client.
func NewRedisTier(client redis.UniversalClient) *RedisTier {
	return &RedisTier{client: client, keyPrefix: "terminal:cache:"}
}

func (r *RedisTier) key(k market.Key) string {
	return r.keyPrefix + k.String()
}

// Get reads an entry; found is false on absent keys.
func (r *RedisTier) Get(ctx context.Context, k market.Key) (*Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", k, err)
	}

	var re redisEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, false, fmt.Errorf("redis decode %s: %w", k, err)
	}
	return &Entry{
		Point:     re.Point,
		StoredAt:  re.StoredAt,
		ExpiresAt: re.ExpiresAt,
	}, true, nil
}

// Set writes an entry with the kind's TTL as the Redis expiry.
func (r *RedisTier) Set(ctx context.Context, k market.Key, e *Entry, ttl time.Duration) error {
	raw, err := json.Marshal(redisEntry{
		Point:     e.Point,
		StoredAt:  e.StoredAt,
		ExpiresAt: e.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", k, err)
	}
	if err := r.client.Set(ctx, r.key(k), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}
