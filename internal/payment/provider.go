package payment

import (
	"context"
	"net/http"
)

// ConfirmRequest is the triple the provider needs to approve an authorised payment.
type ConfirmRequest struct {
	OrderID    string `json:"orderId"`
	PaymentKey string `json:"paymentKey"`
	Amount     int64  `json:"amount"`
}

// Missing reports whether any of the three values is absent. A non-positive amount counts as absent.
func (r ConfirmRequest) Missing() bool {
	return r.OrderID == "" || r.PaymentKey == "" || r.Amount <= 0
}

// UpstreamResponse is the provider's raw answer: its status code and decoded JSON object.
type UpstreamResponse struct {
	Status int
	Body   map[string]any
}

// OK reports whether the provider accepted the request.
func (u UpstreamResponse) OK() bool {
	return u.Status >= 200 && u.Status < 300
}

// CreatePaymentRequest opens a hosted payment window.
type CreatePaymentRequest struct {
	Method        string `json:"method"`
	Amount        int64  `json:"amount"`
	OrderID       string `json:"orderId"`
	OrderName     string `json:"orderName"`
	SuccessURL    string `json:"successUrl"`
	FailURL       string `json:"failUrl"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
}

// CreatedPayment is the subset of the provider's payment object used for redirection.
type CreatedPayment struct {
	PaymentKey  string
	Status      string
	CheckoutURL string
}

// Provider abstracts the operations required from the upstream payment provider.
type Provider interface {
	Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (UpstreamResponse, error)
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatedPayment, error)
}

// Doer executes outbound HTTP requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
