package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/order"
)

type stubFinder map[string]catalog.Product

func (s stubFinder) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func newHandler() *order.Handler {
	products := stubFinder{}
	for _, p := range catalog.DefaultProducts() {
		products[p.ID] = p
	}
	return &order.Handler{Products: products}
}

func TestOrderPage(t *testing.T) {
	h := newHandler()

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/order?productId=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "개발의 신 프리미엄")
	require.Contains(t, rec.Body.String(), "50,000원")

	rec = httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/order", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderSubmit(t *testing.T) {
	h := newHandler()

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"productId":"1","name":"","email":"","phone":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), order.MsgNameRequired)
	require.Contains(t, rec.Body.String(), order.MsgEmailRequired)
	require.Contains(t, rec.Body.String(), order.MsgPhoneRequired)

	rec = post(`{"productId":"404","name":"홍길동","email":"test@example.com","phone":"01012345678"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(`not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"productId":"1","name":"홍길동","email":"test@example.com","phone":"01012345678"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		CheckoutURL string `json:"checkoutUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	u, err := url.Parse(resp.CheckoutURL)
	require.NoError(t, err)
	require.Equal(t, "/checkout", u.Path)
	intent := order.ParseIntent(u.Query())
	require.Equal(t, "1", intent.ProductID)
	require.Equal(t, "홍길동", intent.Name)
	require.Equal(t, "test@example.com", intent.Email)
	require.Equal(t, "01012345678", intent.Phone)
}
