package result

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// Handler serves the payment result pages. Both pages answer 200; the outcome is in the body.
type Handler struct {
	Confirmer Confirmer
	Logger    *zerolog.Logger
}

// Success handles GET /success?orderId=&paymentKey=&amount=.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Confirmer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "confirmation not configured", nil)
		return
	}
	q := r.URL.Query()
	view := Success(r.Context(), h.Confirmer, q.Get("orderId"), q.Get("paymentKey"), q.Get("amount"), h.Logger)
	common.JSON(w, http.StatusOK, view)
}

// Fail handles GET /fail?code=&message=.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	common.JSON(w, http.StatusOK, Fail(q.Get("code"), q.Get("message")))
}
