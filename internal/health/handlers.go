package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// ErrNotConfigured marks a dependency that is not used by this deployment.
var ErrNotConfigured = errors.New("not configured")

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingStore(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness; the API flips it off while draining on shutdown.
func SetReady(v bool) {
	ready.Store(v)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Dependencies reporting
// ErrNotConfigured are shown as "disabled" and do not fail the probe.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "DRAINING", "server is shutting down", nil)
		return
	}
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	storeStatus := probeStatus(h.Checker.PingStore(ctx, timeoutOr(h.StoreTimeout, 500*time.Millisecond)))
	redisStatus := probeStatus(h.Checker.PingRedis(ctx, timeoutOr(h.RedisTimeout, 300*time.Millisecond)))
	status := map[string]string{
		"store": storeStatus,
		"redis": redisStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy(storeStatus) && healthy(redisStatus) {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func probeStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "disabled"
	default:
		return err.Error()
	}
}

func healthy(status string) bool {
	return status == "ok" || status == "disabled"
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// StorePinger is implemented by the catalog store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Probe is the production Checker: the catalog store and an optional Redis client.
type Probe struct {
	Store StorePinger
	Redis *redis.Client
}

// PingStore implements Checker.
func (p Probe) PingStore(ctx context.Context, timeout time.Duration) error {
	if p.Store == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Store.Ping(ctx)
}

// PingRedis implements Checker.
func (p Probe) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}
