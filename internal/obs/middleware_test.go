package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("checkout", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/42", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/products/{id}", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("checkout", nil, registry)
	second := obs.NewHTTPMetrics("checkout", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestDomainMetricsCountCatalogMutations(t *testing.T) {
	obs.MustRegisterDomainMetrics("checkout", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.CatalogMutationsTotal.WithLabelValues("create", "success"))
	obs.CountCatalogMutation("create", nil)
	require.Equal(t, before+1, testutil.ToFloat64(obs.CatalogMutationsTotal.WithLabelValues("create", "success")))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 50}, obs.ParseBucketsCSV("5, x, -1, 50"))
	require.Nil(t, obs.ParseBucketsCSV(" "))
}
