package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/payments"
)

type fakeStatus struct {
	out auth.StatusOutcome
	set bool
}

func (f fakeStatus) LastStatus() (auth.StatusOutcome, time.Time, bool) {
	return f.out, time.Now(), f.set
}

type fakeReconciler struct {
	res   payments.Resolution
	calls []int64
}

func (f *fakeReconciler) Reconcile(_ context.Context, id int64) (payments.Resolution, error) {
	f.calls = append(f.calls, id)
	return f.res, nil
}

func serve(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	s := NewServer(&config.AppConfig{AppEnv: "dev"}, nil, ServerDeps{})
	rr := serve(s, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != true || body["app_env"] != "dev" {
		t.Fatalf("unexpected body %v", body)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("security headers missing: %v", rr.Header())
	}
}

func TestReadyzFollowsLastRefresh(t *testing.T) {
	cases := []struct {
		name   string
		status StatusSource
		code   int
	}{
		{"no source", nil, http.StatusServiceUnavailable},
		{"not refreshed yet", fakeStatus{}, http.StatusServiceUnavailable},
		{"authenticated", fakeStatus{out: auth.StatusAuthenticated, set: true}, http.StatusOK},
		{"anonymous", fakeStatus{out: auth.StatusAnonymous, set: true}, http.StatusOK},
		{"unavailable", fakeStatus{out: auth.StatusUnavailable, set: true}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		s := NewServer(&config.AppConfig{}, nil, ServerDeps{Status: tc.status})
		if rr := serve(s, http.MethodGet, "/readyz", nil); rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, rr.Code)
		}
	}
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	s := NewServer(&config.AppConfig{}, nil, ServerDeps{})
	if rr := serve(s, http.MethodGet, "/metrics", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMetricsEndpointRequiresToken(t *testing.T) {
	cfg := &config.AppConfig{AppEnv: "prod", Agent: config.AgentConfig{MetricsEnabled: true}}
	s := NewServer(cfg, nil, ServerDeps{})
	if rr := serve(s, http.MethodGet, "/metrics", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	cfg = &config.AppConfig{AppEnv: "prod", Agent: config.AgentConfig{MetricsEnabled: true, MetricsToken: "t0k"}}
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "logement_test_total", Help: "test"})
	extra.Inc()
	s = NewServer(cfg, nil, ServerDeps{Collectors: []prometheus.Collector{extra}})
	if rr := serve(s, http.MethodGet, "/metrics", http.Header{"Authorization": {"Bearer wrong"}}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}
	rr := serve(s, http.MethodGet, "/metrics", http.Header{"Authorization": {"Bearer t0k"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	for _, name := range []string{"logement_payments_pending", "logement_agent_uptime_seconds", "logement_test_total 1"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Fatalf("metrics output missing %q", name)
		}
	}
}

func TestMetricsOpenInDevWithoutToken(t *testing.T) {
	cfg := &config.AppConfig{AppEnv: "dev", Agent: config.AgentConfig{MetricsEnabled: true}}
	s := NewServer(cfg, nil, ServerDeps{})
	if rr := serve(s, http.MethodGet, "/metrics", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestPaymentReturnRejectsMissingID(t *testing.T) {
	s := NewServer(&config.AppConfig{}, nil, ServerDeps{})
	rr := serve(s, http.MethodGet, "/payments/return?status=success", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if s.tracker.Len() != 0 {
		t.Fatalf("nothing should be tracked")
	}
}

func TestPaymentReturnTracksAndReconciles(t *testing.T) {
	rec := &fakeReconciler{res: payments.Unresolved}
	tracker := payments.NewTracker()
	s := NewServer(&config.AppConfig{}, nil, ServerDeps{Tracker: tracker, Reconciler: rec})

	rr := serve(s, http.MethodGet, "/payments/return?paiement_id=12&transaction_id=TX-9&status=success", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Paiement en cours de vérification") {
		t.Fatalf("unexpected page: %s", rr.Body.String())
	}
	p, ok := tracker.Get(12)
	if !ok || p.TransactionID != "TX-9" || p.GatewayStatus != "success" {
		t.Fatalf("unexpected tracked payment %+v (%v)", p, ok)
	}
	if len(rec.calls) != 1 || rec.calls[0] != 12 {
		t.Fatalf("expected one reconcile for 12, got %v", rec.calls)
	}

	rec.res = payments.Confirmed
	rr = serve(s, http.MethodGet, "/payments/return?paiement_id=12", http.Header{"Accept": {"application/json"}})
	var v returnView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Status != "confirmed" || v.PaiementID != 12 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	if !l.allow("a") || !l.allow("a") {
		t.Fatalf("first two requests must pass")
	}
	if l.allow("a") {
		t.Fatalf("third request must be limited")
	}
	if !l.allow("b") {
		t.Fatalf("other keys are independent")
	}
	now = now.Add(time.Minute)
	if !l.allow("a") {
		t.Fatalf("bucket must refill")
	}
}
