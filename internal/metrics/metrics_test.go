package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession_ActiveGauge(t *testing.T) {
	m := New()
	m.RecordSession(SessionStarted)
	m.RecordSession(SessionStarted)
	m.RecordSession(SessionCompleted)

	if got := testutil.ToFloat64(m.breathingActive); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.breathing.WithLabelValues(SessionStarted)); got != 2 {
		t.Errorf("started = %v, want 2", got)
	}
	m.RecordSession(SessionAbandoned)
	if got := testutil.ToFloat64(m.breathingActive); got != 0 {
		t.Errorf("active sessions = %v, want 0", got)
	}
}

func TestRecordAssessmentAndDispatches(t *testing.T) {
	m := New()
	m.RecordAssessment("high")
	m.RecordAssessment("high")
	m.RecordReminder(true)
	m.RecordReferral(false)

	if got := testutil.ToFloat64(m.assessments.WithLabelValues("high")); got != 2 {
		t.Errorf("high assessments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.remindersSent.WithLabelValues("true")); got != 1 {
		t.Errorf("reminders = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.referralsSent.WithLabelValues("false")); got != 1 {
		t.Errorf("failed referrals = %v, want 1", got)
	}
}

func TestInstrumentHandler(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("/breathing/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.Handle("/metrics", m.Handler())
	h := m.InstrumentHandler(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/breathing/sessions/abc", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/breathing/sessions/{id}", "404")); got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "tranquil_http_requests_total") {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                       "/",
		"/":                      "/",
		"/health":                "/health",
		"/breathing/sessions/xy": "/breathing",
	}
	for in, want := range tests {
		if got := canonicalPath(in); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
