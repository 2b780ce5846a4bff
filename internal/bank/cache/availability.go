package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "bloodbank/pkg/domain"
)

const (
	// Redis key prefix for per-group availability counts.
	availabilityKeyPrefix = "bb:avail:"

	// Counts drift as units expire, so cached values stay short-lived even
	// without invalidation.
	defaultAvailabilityTTL = 30 * time.Second
)

// Availability caches per-group AVAILABLE unit counts in Redis for the stock
// dashboard. The ledger remains the source of truth; mutations invalidate and
// the TTL bounds staleness between invalidations.
type Availability struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures an Availability cache.
type Option func(*Availability)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(a *Availability) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// NewAvailability constructs a Redis-backed availability cache.
func NewAvailability(client *redis.Client, opts ...Option) *Availability {
	a := &Availability{
		client: client,
		ttl:    defaultAvailabilityTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Get returns the cached count for a group. The second return is false on a
// cache miss.
func (a *Availability) Get(ctx context.Context, group id.BloodGroup) (int, bool, error) {
	val, err := a.client.Get(ctx, availabilityKeyPrefix+group.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// Corrupt entry; treat as a miss so the ledger repopulates it.
		return 0, false, nil
	}
	return count, true, nil
}

// Set stores the count for a group with the cache TTL.
func (a *Availability) Set(ctx context.Context, group id.BloodGroup, count int) error {
	return a.client.Set(ctx, availabilityKeyPrefix+group.String(), strconv.Itoa(count), a.ttl).Err()
}

// Invalidate drops cached counts for the given groups. Called after
// collections and allocations so the next dashboard read recomputes.
func (a *Availability) Invalidate(ctx context.Context, groups ...id.BloodGroup) error {
	if len(groups) == 0 {
		return nil
	}
	keys := make([]string, 0, len(groups))
	for _, group := range groups {
		keys = append(keys, availabilityKeyPrefix+group.String())
	}
	return a.client.Del(ctx, keys...).Err()
}
