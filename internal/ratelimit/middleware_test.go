package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/common"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Duration, int) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareEnforcesRule(t *testing.T) {
	handler := Handler{
		Limiter: NewMemory("mw:"),
		Rule:    Rule{Name: "confirm", Window: time.Minute, Max: 1},
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/confirm-payment", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)
	require.Equal(t, "1", rr1.Header().Get("X-RateLimit-Limit"))

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))

	var body common.ErrorBody
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Code)

	other := req.Clone(req.Context())
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var reported error
	handler := Handler{
		Limiter: failingLimiter{},
		Rule:    Rule{Name: "confirm", Window: time.Second, Max: 1},
		OnError: func(err error) { reported = err },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/confirm-payment", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualError(t, reported, "redis down")
}
