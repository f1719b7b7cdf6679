package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	}

	got := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(http.MethodGet, "/sessions/{id}", "404"))
	if got != 3 {
		t.Errorf("Expected 3 requests under the route pattern, got %v", got)
	}
	if inFlight := testutil.ToFloat64(HTTPRequestInFlight); inFlight != 0 {
		t.Errorf("Expected no requests in flight, got %v", inFlight)
	}
}

func TestMetricsMiddlewareWithoutRouter(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/raw", nil))

	if got := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(http.MethodPost, "unmatched", "200")); got != 1 {
		t.Errorf("Expected 1 unmatched request, got %v", got)
	}
}
