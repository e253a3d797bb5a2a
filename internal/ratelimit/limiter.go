package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of a single limiter check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts a hit for key and decides whether it fits max per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error)
}

// Fixed is a fixed-window limiter backed by a ulule/limiter store. It is the
// process-local choice when no Redis is configured.
type Fixed struct {
	Store limiter.Store
}

// NewMemory returns a Fixed limiter with an in-memory store.
func NewMemory(prefix string) Fixed {
	return Fixed{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// NewRedisFixed returns a Fixed limiter sharing counters through Redis.
func NewRedisFixed(client *redis.Client, prefix string) (Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Fixed{}, err
	}
	return Fixed{Store: store}, nil
}

// Allow implements Limiter.
func (f Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, ResetAt: time.Now().Add(window)}, nil
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	res, err := limiter.New(f.Store, rate).Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Remaining: int(res.Remaining),
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}
