package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("delinquency_scan").End(nil)
	_ = metrics.Jobs().Track("delinquency_scan").End(errors.New("boom"))
	metrics.Jobs().AddFlagged("HIGH", 2)

	body := scrape(t, metrics)
	require.Contains(t, body, `receivables_jobs_total{job="delinquency_scan",status="success"} 1`)
	require.Contains(t, body, `receivables_jobs_failures_total{job="delinquency_scan"} 1`)
	require.Contains(t, body, `receivables_scan_flagged_clients_total{tier="HIGH"} 2`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `receivables_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `receivables_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerMetrics(t *testing.T) {
	metrics := NewMetrics()
	ledger := metrics.Ledger()
	ledger.ObservePayment("CASH", 250)
	ledger.ObservePayment("CASH", 750)
	ledger.ObserveRejection("overpayment")
	ledger.SetOverdue("MEDIUM", 4200)
	ledger.SetDelinquentClients(3)

	body := scrape(t, metrics)
	for _, want := range []string{
		`receivables_payments_applied_total{method="CASH"} 2`,
		`receivables_payments_amount_total{method="CASH"} 1000`,
		`receivables_payment_rejections_total{reason="overpayment"} 1`,
		`receivables_overdue_amount{tier="MEDIUM"} 4200`,
		`receivables_delinquent_clients 3`,
	} {
		require.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.Nil(t, metrics.Ledger())
	metrics.Ledger().ObservePayment("CASH", 1)
	metrics.Jobs().AddFlagged("LOW", 1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
