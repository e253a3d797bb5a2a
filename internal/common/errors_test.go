package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("", "bad", nil)))
	require.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrap: %w", NotFound("missing", nil))))
	require.Equal(t, KindUpstream, KindOf(Upstream(400, "X", "rejected")))
	require.Equal(t, KindTransport, KindOf(Transport("down", errors.New("dial"))))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestUpstreamKeepsErrorStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, Upstream(http.StatusBadRequest, "", "").HTTPStatus)
	require.Equal(t, http.StatusBadGateway, Upstream(http.StatusOK, "", "").HTTPStatus)
}

func TestWriteErrorFlatShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Validation("INVALID_REQUEST", "필수 파라미터가 누락되었습니다", nil), "서버 오류가 발생했습니다")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "필수 파라미터가 누락되었습니다", body["error"])
	require.Equal(t, "INVALID_REQUEST", body["code"])
	_, hasDetails := body["details"]
	require.False(t, hasDetails)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"), "서버 오류가 발생했습니다")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "서버 오류가 발생했습니다", body["error"])
}
