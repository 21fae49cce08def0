package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.TokenIssued(PurposeVerification)
	m.TokenIssued(PurposeVerification)
	m.TokenConsumed(PurposeReset, OutcomeInvalid)
	m.RegistrationRollback(OutcomeOK)
	m.SnapshotLoad(OutcomeError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues(PurposeVerification)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensConsumed.WithLabelValues(PurposeReset, OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacks.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotLoads.WithLabelValues(OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TokenIssued(PurposeReset)
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
		m.OrphanProcessed("queue", OutcomeOK)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/v1/admin/dashboard", 200, 20*time.Millisecond)
	m.ReportRendered("pdf")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "fleurease_http_request_duration_seconds")
	assert.Contains(t, body, `fleurease_reports_rendered_total{format="pdf"} 1`)
}
