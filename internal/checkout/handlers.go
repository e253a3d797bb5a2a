package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/common"
	"github.com/noah-isme/toss-checkout/internal/obs"
	"github.com/noah-isme/toss-checkout/internal/order"
)

// Handler serves the checkout page and runs server-side checkouts.
type Handler struct {
	Products  ProductFinder
	Loader    Loader
	ClientKey string
	Origin    string
	Now       func() time.Time
	Logger    *zerolog.Logger
}

type customerView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Page handles GET /checkout?productId=&name=&email=&phone= and returns what the
// browser needs to mount the widget itself.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	intent := order.ParseIntent(r.URL.Query())
	if intent.ProductID == "" || intent.Name == "" || intent.Email == "" {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgNotFound, nil)
		return
	}
	product, err := h.Products.Get(r.Context(), intent.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgNotFound, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"product":   catalog.NewCard(product),
		"customer":  customerView{Name: intent.Name, Email: intent.Email, Phone: intent.Phone},
		"clientKey": h.ClientKey,
		"mounts": map[string]string{
			"paymentMethods": PaymentMethodsSelector,
			"agreement":      AgreementSelector,
		},
	})
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Checkout handles POST /api/checkout: it prepares the widget and requests payment in
// one pass, returning the redirect target.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Products == nil || h.Loader == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgNotFound, nil)
		return
	}
	intent := order.Intent{
		ProductID: strings.TrimSpace(req.ProductID),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
	}

	alerts := &Alerts{}
	orch, err := New(Config{
		Products:  h.Products,
		Loader:    h.Loader,
		Notifier:  alerts,
		ClientKey: h.ClientKey,
		Origin:    h.Origin,
		Now:       h.Now,
		Logger:    h.Logger,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}

	switch orch.Start(r.Context(), intent) {
	case NotFound:
		countRequest("not_found")
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgNotFound, nil)
		return
	case Ready:
	default:
		countRequest("widget_error")
		common.JSONError(w, http.StatusBadGateway, "WIDGET_UNAVAILABLE", MsgWidgetFailed, alerts.Messages)
		return
	}

	result, err := orch.Pay(r.Context())
	if err != nil {
		countRequest("failed")
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, lastOr(alerts.Messages, appErr.Message), nil)
			return
		}
		code := "PAYMENT_FAILED"
		var perr *PaymentError
		if errors.As(err, &perr) && perr.Code != "" {
			code = perr.Code
		}
		common.JSONError(w, http.StatusBadGateway, code, lastOr(alerts.Messages, err.Error()), nil)
		return
	}
	countRequest("success")
	common.JSON(w, http.StatusOK, result)
}

func countRequest(result string) {
	if obs.PaymentRequestTotal != nil {
		obs.PaymentRequestTotal.WithLabelValues(result).Inc()
	}
}

func lastOr(messages []string, fallback string) string {
	if len(messages) == 0 {
		return fallback
	}
	return messages[len(messages)-1]
}
