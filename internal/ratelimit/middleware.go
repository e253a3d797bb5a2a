package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// MsgTooManyRequests is returned with 429 responses.
const MsgTooManyRequests = "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."

// Rule names a limited route and its threshold.
type Rule struct {
	Name   string
	Window time.Duration
	Max    int
}

// Handler enforces a Rule per client IP before delegating to next.
type Handler struct {
	Limiter Limiter
	Rule    Rule
	// Key overrides the client identity; defaults to common.ClientIP.
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware fails open when the limiter errors so a Redis outage never
// blocks payment confirmation.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Rule.Max <= 0 {
		return next
	}
	keyFn := h.Key
	if keyFn == nil {
		keyFn = common.ClientIP
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := h.Rule.Name + ":" + keyFn(r)
		decision, err := h.Limiter.Allow(r.Context(), key, h.Rule.Window, h.Rule.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Rule.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", MsgTooManyRequests, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
