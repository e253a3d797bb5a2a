package checkout

import "context"

// Mount points the widget renders into.
const (
	PaymentMethodsSelector = "#payment-methods"
	AgreementSelector      = "#agreement"
)

// PaymentRequest is handed to the widget when the customer pays.
type PaymentRequest struct {
	OrderID       string `json:"orderId"`
	OrderName     string `json:"orderName"`
	Amount        int64  `json:"amount"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	SuccessURL    string `json:"successUrl"`
	FailURL       string `json:"failUrl"`
}

// Widget is a loaded payment widget bound to one customer.
type Widget interface {
	RenderPaymentMethods(ctx context.Context, selector string, amount int64) error
	RenderAgreement(ctx context.Context, selector string) error
	// RequestPayment starts the payment and returns where the customer is sent next.
	RequestPayment(ctx context.Context, req PaymentRequest) (string, error)
}

// Loader acquires a widget for a client key and customer key.
type Loader interface {
	Load(ctx context.Context, clientKey, customerKey string) (Widget, error)
}

// Notifier shows a blocking, alert-style notice to the customer.
type Notifier interface {
	Alert(ctx context.Context, message string)
}

// PaymentError is a widget rejection carrying the provider's code and message.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Alerts collects notices in memory. Safe for use by a single orchestrator.
type Alerts struct {
	Messages []string
}

// Alert implements Notifier.
func (a *Alerts) Alert(_ context.Context, message string) {
	a.Messages = append(a.Messages, message)
}
