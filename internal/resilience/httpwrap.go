package resilience

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient wraps an http.Client with timeout, circuit-breaker and optional retry logic.
// MaxAttempts defaults to one, so nothing is retried unless asked for.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	Target      string
	Logger      *zerolog.Logger
}

// Do executes the request. The request body is buffered so that retries can replay it.
// When the breaker is open ErrOpenCircuit is returned without touching the network.
// Responses with status >= 500 count as breaker failures but are still returned to the
// caller on the final attempt.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1, 1, time.Second)
	}
	target := cl.Target
	if target == "" {
		target = breaker.Target()
	}
	maxAttempts := cl.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := cl.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	body, err := ensureReplayableBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow(ctx) {
			OutboundRequests.WithLabelValues(target, "rejected").Inc()
			return nil, ErrOpenCircuit
		}
		attemptReq := cloneRequestWithContext(ctx, req, body)
		start := time.Now()
		resp, err := cl.doOnce(ctx, attemptReq)
		OutboundDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			OutboundRequests.WithLabelValues(target, "transport_error").Inc()
			breaker.Report(ctx, false)
			lastErr = err
		case resp.StatusCode >= 500:
			OutboundRequests.WithLabelValues(target, "server_error").Inc()
			breaker.Report(ctx, false)
			if attempt == maxAttempts {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = errors.New(resp.Status)
		default:
			outcome := "ok"
			if resp.StatusCode >= 400 {
				outcome = "client_error"
			}
			OutboundRequests.WithLabelValues(target, outcome).Inc()
			breaker.Report(ctx, true)
			return resp, nil
		}
		if attempt == maxAttempts {
			break
		}
		cl.logger().Warn().Err(lastErr).Str("target", target).Int("attempt", attempt).Msg("outbound request failed, retrying")
		timer := time.NewTimer(Backoff(baseBackoff, attempt, cl.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) logger() *zerolog.Logger {
	if cl.Logger != nil {
		return cl.Logger
	}
	return &breakerNopLogger
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	resp, err := cl.Client.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose keeps the per-attempt context alive until the caller has read the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func ensureReplayableBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, nil
}

func cloneRequestWithContext(ctx context.Context, req *http.Request, body []byte) *http.Request {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		clone.ContentLength = int64(len(body))
	}
	return clone
}

// Backoff returns base*2^(attempt-1) with +/- jitterPct spread (0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
