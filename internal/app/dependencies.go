package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/config"
	"github.com/noah-isme/toss-checkout/internal/events"
	"github.com/noah-isme/toss-checkout/internal/lock"
	"github.com/noah-isme/toss-checkout/internal/payment"
	"github.com/noah-isme/toss-checkout/internal/ratelimit"
	"github.com/noah-isme/toss-checkout/internal/resilience"
)

// TossTarget labels outbound Toss calls in breaker and client metrics.
const TossTarget = "toss"

// NewRedis connects to cfg.RedisURL with tracing (and optionally metrics)
// instrumentation. It returns nil without error when Redis is not configured.
func NewRedis(ctx context.Context, cfg *config.Config, instrumentMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if instrumentMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewCatalogStore builds the product store: Redis-backed with a cross-process
// lock when a client is given, otherwise an in-memory fallback. Default
// products are seeded into an absent document when enabled.
func NewCatalogStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (*catalog.Store, error) {
	storeCfg := catalog.StoreConfig{
		KV:      catalog.NewMemoryKV(),
		Key:     cfg.CatalogStorageKey,
		LockTTL: cfg.LockTTL,
		Logger:  logger,
	}
	if rdb != nil {
		storeCfg.KV = catalog.NewRedisKV(rdb)
		storeCfg.Locker = lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff}
	}
	store, err := catalog.NewStore(storeCfg)
	if err != nil {
		return nil, err
	}
	if cfg.CatalogSeedDefaults {
		seeded, err := store.Seed(ctx, catalog.DefaultProducts())
		if err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		if seeded && logger != nil {
			logger.Info().Str("key", store.Key()).Msg("catalog seeded with default products")
		}
	}
	return store, nil
}

// NewTossClient returns the Toss REST client behind the breaker-guarded,
// single-attempt outbound HTTP client.
func NewTossClient(cfg *config.Config, logger *zerolog.Logger) payment.Toss {
	breaker := resilience.NewBreaker(cfg.CircuitUpstreamMinReq, cfg.CircuitUpstreamFailureRate, cfg.CircuitUpstreamOpenFor).
		WithTarget(TossTarget)
	if logger != nil {
		breaker = breaker.WithLogger(*logger)
	}
	return payment.Toss{
		BaseURL:   cfg.TossAPIBaseURL,
		SecretKey: cfg.TossSecretKey,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			MaxAttempts: 1,
			Timeout:     cfg.OutboundTimeout,
			Target:      TossTarget,
			Logger:      logger,
		},
	}
}

// NewConfirmLimiter picks the Redis sliding window when Redis is available and
// the in-memory fixed window otherwise.
func NewConfirmLimiter(rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.Sliding{Client: rdb, Prefix: "ratelimit:"}
	}
	return ratelimit.NewMemory("ratelimit:")
}

// NewCheckoutLimiter backs the checkout rule with a ulule store, shared through
// Redis when available.
func NewCheckoutLimiter(rdb *redis.Client) (ratelimit.Limiter, error) {
	if rdb == nil {
		return ratelimit.NewMemory("ratelimit:checkout:"), nil
	}
	return ratelimit.NewRedisFixed(rdb, "ratelimit:checkout")
}

// NewEventBus always logs events; with tasks enabled it also enqueues them
// for the worker. The returned close function releases the task client.
func NewEventBus(cfg *config.Config, logger *zerolog.Logger) (*events.Bus, func() error, error) {
	bus := &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}}
	if !cfg.TasksEnabled {
		return bus, func() error { return nil }, nil
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse task redis url: %w", err)
	}
	client := asynq.NewClient(opt)
	bus.Notifiers = append(bus.Notifiers, events.TaskPublisher{
		Client: client,
		Topics: events.DefaultTopics(),
	})
	return bus, client.Close, nil
}
