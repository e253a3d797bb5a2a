package result

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/payment"
	"github.com/noah-isme/toss-checkout/internal/pricing"
)

// Status of the success page.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Failed    Status = "failed"
)

// Messages of the result pages.
const (
	MsgMissingInfo    = "필수 정보가 누락되었습니다."
	MsgConfirmError   = "결제 승인 처리 중 오류가 발생했습니다."
	MsgConfirmed      = "결제가 완료되었습니다!"
	MsgPaymentFailed  = "결제가 실패했습니다"
	DefaultFailReason = "알 수 없는 오류"
	DefaultFailCode   = "UNKNOWN"
)

// Link is a navigation target shown on a result page.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Confirmer confirms a payment server-side.
type Confirmer interface {
	Confirm(ctx context.Context, req payment.ConfirmRequest, idempotencyKey string) (map[string]any, error)
}

// SuccessView is what the success page shows.
type SuccessView struct {
	Status      Status `json:"status"`
	Title       string `json:"title,omitempty"`
	Error       string `json:"error,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	AmountLabel string `json:"amountLabel,omitempty"`
	Links       []Link `json:"links"`
}

var homeLink = Link{Label: "홈으로 돌아가기", Href: "/"}

// Success builds the success page for the redirect parameters. Missing parameters fail
// without contacting the confirmer; otherwise the payment is confirmed exactly once.
func Success(ctx context.Context, c Confirmer, orderID, paymentKey, amount string, logger *zerolog.Logger) SuccessView {
	view := SuccessView{Status: Pending, Links: []Link{homeLink}}
	orderID, paymentKey, amount = strings.TrimSpace(orderID), strings.TrimSpace(paymentKey), strings.TrimSpace(amount)
	if orderID == "" || paymentKey == "" || amount == "" {
		view.Status, view.Error = Failed, MsgMissingInfo
		return view
	}
	// An unparsable amount is sent as zero and rejected by the confirmation step.
	value, _ := strconv.ParseInt(amount, 10, 64)
	if _, err := c.Confirm(ctx, payment.ConfirmRequest{OrderID: orderID, PaymentKey: paymentKey, Amount: value}, ""); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("order_id", orderID).Msg("success page confirmation failed")
		}
		view.Status, view.Error = Failed, MsgConfirmError
		return view
	}
	view.Status = Confirmed
	view.Title = MsgConfirmed
	view.OrderID = orderID
	view.Amount = value
	view.AmountLabel = pricing.FormatKRW(value)
	return view
}

// FailView is what the fail page shows.
type FailView struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
	Links  []Link `json:"links"`
}

// Fail builds the fail page from the provider's code and message.
func Fail(code, message string) FailView {
	code, message = strings.TrimSpace(code), strings.TrimSpace(message)
	if code == "" {
		code = DefaultFailCode
	}
	if message == "" {
		message = DefaultFailReason
	}
	return FailView{
		Title:  MsgPaymentFailed,
		Reason: message,
		Code:   code,
		Links: []Link{
			{Label: "다시 시도하기", Href: "/products"},
			homeLink,
		},
	}
}
