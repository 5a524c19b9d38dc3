package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CompletionTransition("approved")
	m.CompletionTransition("approved")
	m.LedgerPosted("REVERSAL", -130)
	m.TopupsGenerated(2, 1)
	m.TopupRun(true)

	if got := testutil.ToFloat64(m.completions.WithLabelValues("approved")); got != 2 {
		t.Errorf("approved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.postedCents.WithLabelValues("REVERSAL")); got != 130 {
		t.Errorf("reversal amount = %v, want 130", got)
	}
	if got := testutil.ToFloat64(m.topups.WithLabelValues("skipped")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.topupRuns.WithLabelValues("ok")); got != 1 {
		t.Errorf("runs ok = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CompletionTransition("approved")
	m.LedgerPosted("CHORE_EARNING", 100)
	m.TopupsGenerated(1, 0)
	m.TopupRun(false)
	m.ObserveRequest(http.MethodGet, 200, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, 201, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `choreledger_http_requests_total{code="201",method="POST"} 1`) {
		t.Errorf("missing request counter in output:\n%s", body)
	}
}
