package payment_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/checkout"
	"github.com/noah-isme/toss-checkout/internal/payment"
)

func TestHostedWidgetRequestsPayment(t *testing.T) {
	srv, calls := newUpstream(t, http.StatusOK, `{"paymentKey":"pk","status":"READY","checkout":{"url":"https://pay.example/abc"}}`)
	loader := payment.HostedWidget{Creator: newToss(srv)}
	ctx := context.Background()

	_, err := loader.Load(ctx, "", "test@example.com")
	require.Error(t, err)

	widget, err := loader.Load(ctx, "test_ck_123", "test@example.com")
	require.NoError(t, err)

	_, err = widget.RequestPayment(ctx, checkout.PaymentRequest{OrderID: "ORDER_1", Amount: 50000})
	var perr *checkout.PaymentError
	require.True(t, errors.As(err, &perr))
	require.Empty(t, *calls)

	require.NoError(t, widget.RenderPaymentMethods(ctx, checkout.PaymentMethodsSelector, 50000))
	require.NoError(t, widget.RenderAgreement(ctx, checkout.AgreementSelector))

	_, err = widget.RequestPayment(ctx, checkout.PaymentRequest{OrderID: "ORDER_1", Amount: 100})
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "AMOUNT_MISMATCH", perr.Code)

	redirect, err := widget.RequestPayment(ctx, checkout.PaymentRequest{
		OrderID:       "ORDER_1",
		OrderName:     "개발의 신 프리미엄",
		Amount:        50000,
		CustomerName:  "홍길동",
		CustomerEmail: "test@example.com",
		SuccessURL:    "http://localhost:8080/success?orderId=ORDER_1",
		FailURL:       "http://localhost:8080/fail",
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/abc", redirect)
	require.Len(t, *calls, 1)
	require.Equal(t, "홍길동", (*calls)[0].Body["customerName"])
}

func TestHostedWidgetMapsUpstreamRejection(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusBadRequest, `{"code":"INVALID_REQUEST","message":"잘못된 요청입니다."}`)
	widget, err := payment.HostedWidget{Creator: newToss(srv)}.Load(context.Background(), "ck", "c")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, widget.RenderPaymentMethods(ctx, checkout.PaymentMethodsSelector, 1000))
	require.NoError(t, widget.RenderAgreement(ctx, checkout.AgreementSelector))

	_, err = widget.RequestPayment(ctx, checkout.PaymentRequest{OrderID: "o", Amount: 1000})
	var perr *checkout.PaymentError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "INVALID_REQUEST", perr.Code)
	require.Equal(t, "잘못된 요청입니다.", perr.Message)
}
