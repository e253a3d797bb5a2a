package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/checkout"
)

func newHandler(loader checkout.Loader) *checkout.Handler {
	return &checkout.Handler{
		Products:  stubFinder{"1": premium},
		Loader:    loader,
		ClientKey: "test_ck",
		Origin:    "http://localhost:8080",
		Now:       func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func TestCheckoutPage(t *testing.T) {
	h := newHandler(&stubLoader{widget: &stubWidget{}})

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/checkout?productId=1&name=%ED%99%8D%EA%B8%B8%EB%8F%99&email=test%40example.com&phone=01012345678", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"paymentMethods":"#payment-methods"`)
	require.Contains(t, rec.Body.String(), "홍길동")

	rec = httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/checkout?productId=1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), checkout.MsgNotFound)
}

func TestCheckoutHandler(t *testing.T) {
	post := func(h *checkout.Handler, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body)))
		return rec
	}
	valid := `{"productId":"1","name":"홍길동","email":"test@example.com","phone":"01012345678"}`

	t.Run("success", func(t *testing.T) {
		rec := post(newHandler(&stubLoader{widget: &stubWidget{redirect: "https://pay.example/x"}}), valid)
		require.Equal(t, http.StatusOK, rec.Code)
		var result checkout.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Equal(t, "ORDER_1700000000000", result.OrderID)
		require.EqualValues(t, 50000, result.Amount)
		require.Equal(t, "https://pay.example/x", result.RedirectURL)
	})

	t.Run("not found", func(t *testing.T) {
		rec := post(newHandler(&stubLoader{widget: &stubWidget{}}), `{"productId":"2","name":"a","email":"b"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("widget failure", func(t *testing.T) {
		rec := post(newHandler(&stubLoader{err: http.ErrHandlerTimeout}), valid)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Contains(t, rec.Body.String(), checkout.MsgWidgetFailed)
	})

	t.Run("payment rejected", func(t *testing.T) {
		widget := &stubWidget{payErr: &checkout.PaymentError{Code: "REJECT_CARD_COMPANY", Message: "카드사 거절"}}
		rec := post(newHandler(&stubLoader{widget: widget}), valid)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.JSONEq(t, `{"error":"결제 실패: 카드사 거절","code":"REJECT_CARD_COMPANY"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(newHandler(&stubLoader{}), `{`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
