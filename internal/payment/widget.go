package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/toss-checkout/internal/checkout"
	"github.com/noah-isme/toss-checkout/internal/common"
)

// PaymentCreator opens hosted payment windows.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatedPayment, error)
}

// HostedWidget is a server-side stand-in for the browser widget. Rendering records the
// amount and agreement; RequestPayment opens a hosted payment window and returns its URL.
type HostedWidget struct {
	Creator PaymentCreator
	Method  string
}

// Load implements checkout.Loader.
func (h HostedWidget) Load(_ context.Context, clientKey, _ string) (checkout.Widget, error) {
	if h.Creator == nil {
		return nil, errors.New("hosted widget: payment creator not configured")
	}
	if strings.TrimSpace(clientKey) == "" {
		return nil, errors.New("hosted widget: client key not configured")
	}
	method := h.Method
	if method == "" {
		method = "CARD"
	}
	return &hostedSession{creator: h.Creator, method: method}, nil
}

type hostedSession struct {
	creator PaymentCreator
	method  string

	mu       sync.Mutex
	amount   int64
	rendered bool
	agreed   bool
}

func (s *hostedSession) RenderPaymentMethods(_ context.Context, selector string, amount int64) error {
	if selector == "" {
		return errors.New("hosted widget: selector required")
	}
	if amount <= 0 {
		return fmt.Errorf("hosted widget: invalid amount %d", amount)
	}
	s.mu.Lock()
	s.amount, s.rendered = amount, true
	s.mu.Unlock()
	return nil
}

func (s *hostedSession) RenderAgreement(_ context.Context, selector string) error {
	if selector == "" {
		return errors.New("hosted widget: selector required")
	}
	s.mu.Lock()
	s.agreed = true
	s.mu.Unlock()
	return nil
}

func (s *hostedSession) RequestPayment(ctx context.Context, req checkout.PaymentRequest) (string, error) {
	s.mu.Lock()
	rendered, agreed, amount := s.rendered, s.agreed, s.amount
	s.mu.Unlock()
	if !rendered || !agreed {
		return "", &checkout.PaymentError{Code: "NOT_RENDERED", Message: "payment widget not rendered"}
	}
	if req.Amount != amount {
		return "", &checkout.PaymentError{Code: "AMOUNT_MISMATCH", Message: fmt.Sprintf("amount %d does not match rendered amount %d", req.Amount, amount)}
	}
	created, err := s.creator.CreatePayment(ctx, CreatePaymentRequest{
		Method:        s.method,
		Amount:        req.Amount,
		OrderID:       req.OrderID,
		OrderName:     req.OrderName,
		SuccessURL:    req.SuccessURL,
		FailURL:       req.FailURL,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Kind == common.KindUpstream {
			return "", &checkout.PaymentError{Code: appErr.Code, Message: appErr.Message}
		}
		return "", err
	}
	return created.CheckoutURL, nil
}
