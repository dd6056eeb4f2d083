package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeDatesKey = "availability:active_dates"

// DateRemaining is the cached shape of one bookable date.
type DateRemaining struct {
	Date      string `json:"date"`
	Remaining int    `json:"remaining"`
}

// AvailabilityCache caches the public list of bookable dates. A nil client
// disables caching; every method is then a miss or a no-op.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewAvailabilityCache(client *redis.Client, prefix string, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *AvailabilityCache) key() string {
	if c.prefix == "" {
		return activeDatesKey
	}
	return c.prefix + ":" + activeDatesKey
}

func (c *AvailabilityCache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetActiveDates returns the cached list and whether it was a hit.
func (c *AvailabilityCache) GetActiveDates(ctx context.Context) ([]DateRemaining, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		return nil, false
	}
	var out []DateRemaining
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *AvailabilityCache) SetActiveDates(ctx context.Context, dates []DateRemaining) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(), raw, c.ttl).Err()
}

// Invalidate drops the cached list after any ledger mutation.
func (c *AvailabilityCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	err := c.client.Del(ctx, c.key()).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
