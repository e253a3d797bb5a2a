package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// DefaultTossBaseURL is the production API host.
const DefaultTossBaseURL = "https://api.tosspayments.com"

const maxUpstreamBody = 1 << 20

// Toss implements Provider against the Toss Payments REST API.
type Toss struct {
	BaseURL   string
	SecretKey string
	HTTP      Doer
}

// Confirm calls POST /v1/payments/confirm. Only transport and decoding failures are
// returned as errors; upstream rejections come back in the response.
func (t Toss) Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (UpstreamResponse, error) {
	headers := http.Header{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers.Set("Idempotency-Key", key)
	}
	return t.post(ctx, "/v1/payments/confirm", req, headers)
}

// CreatePayment calls POST /v1/payments and returns the hosted checkout location.
func (t Toss) CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatedPayment, error) {
	if req.Method == "" {
		req.Method = "CARD"
	}
	resp, err := t.post(ctx, "/v1/payments", req, nil)
	if err != nil {
		return CreatedPayment{}, err
	}
	if !resp.OK() {
		code, message := upstreamError(resp.Body)
		if message == "" {
			message = http.StatusText(resp.Status)
		}
		return CreatedPayment{}, common.Upstream(resp.Status, code, message)
	}
	out := CreatedPayment{
		PaymentKey: stringField(resp.Body, "paymentKey"),
		Status:     stringField(resp.Body, "status"),
	}
	if checkout, ok := resp.Body["checkout"].(map[string]any); ok {
		out.CheckoutURL = stringField(checkout, "url")
	}
	if out.CheckoutURL == "" {
		return CreatedPayment{}, errors.New("toss: response has no checkout url")
	}
	return out, nil
}

func (t Toss) post(ctx context.Context, path string, payload any, headers http.Header) (UpstreamResponse, error) {
	if t.HTTP == nil {
		return UpstreamResponse{}, errors.New("toss: http client not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return UpstreamResponse{}, fmt.Errorf("toss: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return UpstreamResponse{}, fmt.Errorf("toss: build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Authorization", BasicAuth(t.SecretKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(ctx, req)
	if err != nil {
		return UpstreamResponse{}, fmt.Errorf("toss: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxUpstreamBody))
	decoder.UseNumber()
	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return UpstreamResponse{}, fmt.Errorf("toss: decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	return UpstreamResponse{Status: resp.StatusCode, Body: decoded}, nil
}

func (t Toss) baseURL() string {
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		return DefaultTossBaseURL
	}
	return base
}

// BasicAuth builds the Authorization header value: the secret key as user name and an empty password.
func BasicAuth(secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":"))
}

func upstreamError(body map[string]any) (code, message string) {
	return stringField(body, "code"), stringField(body, "message")
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
