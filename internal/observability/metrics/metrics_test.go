package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestNormalizePathFoldsSessionIDs(t *testing.T) {
	cases := map[string]string{
		"/v1/sessions":            "/v1/sessions",
		"/v1/sessions/":           "/v1/sessions/",
		"/v1/sessions/abc":        "/v1/sessions/{id}",
		"/v1/sessions/abc/detect": "/v1/sessions/{id}/detect",
		"/v1/sessions/abc/image":  "/v1/sessions/{id}/image",
		"/v1/dashboard":           "/v1/dashboard",
	}
	for input, want := range cases {
		if got := normalizePath(input); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMetricsEndpointExposesRecordedSeries(t *testing.T) {
	m := NewHTTPServerMetrics("cropguard-api")
	upstream := NewUpstreamMetrics("cropguard-api", m.Registerer())

	handler := m.Middleware("cropguard-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/sessions/abc/detect", nil))
	m.RecordDetection("stale", 20*time.Millisecond)
	m.RecordSessionsSwept(2)
	upstream.ObserveUpstream("detect", "success", 150*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`cropguard_http_requests_total{method="POST",path="/v1/sessions/{id}/detect",service="cropguard-api",status="202"} 1`,
		`cropguard_detection_outcomes_total{outcome="stale",service="cropguard-api"} 1`,
		`cropguard_session_swept_total{service="cropguard-api"} 2`,
		`cropguard_upstream_calls_total{endpoint="detect",outcome="success",service="cropguard-api"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

type breakerStatesFake map[string]gobreaker.State

func (f breakerStatesFake) State(operation string) gobreaker.State { return f[operation] }

type sessionCounterFake int

func (f sessionCounterFake) Len() int { return int(f) }

func TestStateGaugesReadSourcesOnScrape(t *testing.T) {
	m := NewHTTPServerMetrics("cropguard-api")
	breakers := breakerStatesFake{"cropapi.detect": gobreaker.StateOpen}
	RegisterBreakerStates(m.Registerer(), "cropguard-api", breakers, "cropapi.detect", "cropapi.stats")
	RegisterActiveSessions(m.Registerer(), "cropguard-api", sessionCounterFake(3))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	text := rec.Body.String()

	for _, want := range []string{
		`cropguard_breaker_state{operation="cropapi.detect",service="cropguard-api"} 2`,
		`cropguard_breaker_state{operation="cropapi.stats",service="cropguard-api"} 0`,
		`cropguard_session_active{service="cropguard-api"} 3`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %s\n%s", want, text)
		}
	}
}
