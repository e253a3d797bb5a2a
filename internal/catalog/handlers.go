package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/common"
	"github.com/noah-isme/toss-checkout/internal/events"
	"github.com/noah-isme/toss-checkout/internal/obs"
	"github.com/noah-isme/toss-checkout/internal/pricing"
)

// Response messages of the product API.
const (
	MsgFieldsMissing = "필수 항목이 누락되었습니다"
	MsgIDRequired    = "상품 ID가 필요합니다"
	MsgNotFound      = "상품을 찾을 수 없습니다"
	MsgCreateFailed  = "상품 추가에 실패했습니다"
	MsgUpdateFailed  = "상품 수정에 실패했습니다"
	MsgDeleteFailed  = "상품 삭제에 실패했습니다"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Handler exposes product browsing and the product API.
type Handler struct {
	store  *Store
	events Emitter
	logger zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Store  *Store
	Events Emitter
	Logger *zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "catalog_handler").Logger()
	}
	return &Handler{store: cfg.Store, events: cfg.Events, logger: logger}
}

// Card is one product tile on the browsing page.
type Card struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	PriceLabel  string `json:"priceLabel"`
	Description string `json:"description"`
	OrderURL    string `json:"orderUrl"`
}

// NewCard builds the browsing card for p.
func NewCard(p Product) Card {
	return Card{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		PriceLabel:  pricing.FormatKRW(p.Price),
		Description: p.Description,
		OrderURL:    "/order?productId=" + url.QueryEscape(p.ID),
	}
}

// Browse handles GET /products.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	products := h.store.List(r.Context())
	cards := make([]Card, 0, len(products))
	for _, p := range products {
		cards = append(cards, NewCard(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cards})
}

// List handles GET /api/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"products": h.store.List(r.Context())})
}

// Get handles GET /api/products/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgIDRequired, nil)
		return
	}
	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, MsgNotFound)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"product": product})
}

// Create handles POST /api/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var fields ProductFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgFieldsMissing, nil)
		return
	}
	if errs := fields.Validate(); errs != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgFieldsMissing, errs)
		return
	}
	product, err := h.store.Create(r.Context(), fields)
	obs.CountCatalogMutation("create", err)
	if err != nil {
		h.writeError(w, err, MsgCreateFailed)
		return
	}
	h.emit(r.Context(), events.TopicProductCreated, product)
	common.JSON(w, http.StatusCreated, map[string]any{"product": product})
}

type updateRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       *int64 `json:"price"`
	Description string `json:"description"`
}

// patch keeps only the fields that carry a value; blank strings and a zero price are ignored.
func (u updateRequest) patch() ProductPatch {
	var p ProductPatch
	if strings.TrimSpace(u.Name) != "" {
		name := u.Name
		p.Name = &name
	}
	if u.Price != nil && *u.Price != 0 {
		price := *u.Price
		p.Price = &price
	}
	if strings.TrimSpace(u.Description) != "" {
		desc := u.Description
		p.Description = &desc
	}
	return p
}

// Update handles PUT /api/products and PUT /api/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req updateRequest
	// A type error still fills the other fields, so the id stays usable.
	decodeErr := json.NewDecoder(r.Body).Decode(&req)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		id = strings.TrimSpace(req.ID)
	}
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgIDRequired, nil)
		return
	}
	if decodeErr != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(decodeErr, &typeErr) && typeErr.Field == "price" {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", MsgPriceInvalid, common.FieldErrors{"price": MsgPriceInvalid})
			return
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgFieldsMissing, nil)
		return
	}
	product, err := h.store.Update(r.Context(), id, req.patch())
	obs.CountCatalogMutation("update", err)
	if err != nil {
		h.writeError(w, err, MsgUpdateFailed)
		return
	}
	h.emit(r.Context(), events.TopicProductUpdated, product)
	common.JSON(w, http.StatusOK, map[string]any{"product": product})
}

// Delete handles DELETE /api/products?id= and DELETE /api/products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("id"))
	}
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", MsgIDRequired, nil)
		return
	}
	removed, err := h.store.Delete(r.Context(), id)
	obs.CountCatalogMutation("delete", err)
	if err != nil {
		h.writeError(w, err, MsgDeleteFailed)
		return
	}
	if !removed {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgNotFound, nil)
		return
	}
	h.emit(r.Context(), events.TopicProductDeleted, Product{ID: id})
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return false
	}
	return true
}

func (h *Handler) emit(ctx context.Context, topic string, product Product) {
	if h.events == nil {
		return
	}
	if _, err := h.events.Emit(ctx, topic, product.ID, product); err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("emit product event")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", MsgNotFound, nil)
	case common.IsAppError(err):
		common.WriteError(w, err, fallback)
	default:
		h.logger.Error().Err(err).Msg("catalog storage failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}
