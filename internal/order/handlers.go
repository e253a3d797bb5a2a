package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/common"
)

const (
	MsgInvalidForm     = "입력값을 확인해주세요"
	MsgProductNotFound = "상품을 찾을 수 없습니다"
)

// ProductFinder resolves a product by id.
type ProductFinder interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Handler serves the order page and its form submission.
type Handler struct {
	Products ProductFinder
	// BaseURL prefixes the checkout location; empty yields a relative URL.
	BaseURL string
}

// Page handles GET /order?productId=.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	product, ok := h.lookup(r.Context(), w, r.URL.Query().Get("productId"))
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"product": catalog.NewCard(product),
		"form":    Form{},
	})
}

type submitRequest struct {
	ProductID string `json:"productId"`
	Form
}

// Submit handles POST /api/orders.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgInvalidForm, nil)
		return
	}
	if _, ok := h.lookup(r.Context(), w, req.ProductID); !ok {
		return
	}
	var target string
	errs := Submit(req.ProductID, req.Form, func(intent Intent) {
		target = intent.CheckoutURL(h.BaseURL)
	})
	if errs != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", MsgInvalidForm, errs)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"checkoutUrl": target})
}

func (h *Handler) lookup(ctx context.Context, w http.ResponseWriter, id string) (catalog.Product, bool) {
	if h == nil || h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "product finder not configured", nil)
		return catalog.Product{}, false
	}
	product, err := h.Products.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgProductNotFound, nil)
			return catalog.Product{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return catalog.Product{}, false
	}
	return product, true
}
