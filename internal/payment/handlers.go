package payment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// Handler exposes the payment confirmation endpoint.
type Handler struct {
	Svc *Service
}

type confirmBody struct {
	OrderID    string      `json:"orderId"`
	PaymentKey string      `json:"paymentKey"`
	Amount     json.Number `json:"amount"`
}

// Confirm handles POST /api/confirm-payment. An inbound Idempotency-Key header is
// passed through to the provider unchanged.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", MsgServerError, nil)
		return
	}
	var body confirmBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgMissingParams, nil)
		return
	}
	amount, err := body.Amount.Int64()
	if err != nil {
		amount = 0
	}
	out, err := h.Svc.Confirm(r.Context(), ConfirmRequest{
		OrderID:    body.OrderID,
		PaymentKey: body.PaymentKey,
		Amount:     amount,
	}, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		common.WriteError(w, err, MsgServerError)
		return
	}
	common.JSON(w, http.StatusOK, out)
}
