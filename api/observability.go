package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satanpticoeur/social-logement-app/core/auth"
)

var processStartedAt = time.Now().UTC()

func (s *Server) registerObservabilityRoutes() {
	s.router.MethodFunc(http.MethodGet, "/healthz", s.healthz)
	s.router.MethodFunc(http.MethodGet, "/readyz", s.readyz)

	if !s.cfg.Agent.MetricsEnabled {
		return
	}
	reg := s.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	_ = reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "logement_agent_uptime_seconds",
		Help: "Agent uptime in seconds.",
	}, func() float64 {
		return time.Since(processStartedAt).Seconds()
	}))
	_ = reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "logement_payments_pending",
		Help: "Checkouts waiting for backend confirmation.",
	}, func() float64 {
		return float64(s.tracker.Len())
	}))
	for _, c := range s.collectors {
		if err := reg.Register(c); err != nil {
			s.logger.Warnf("metrics collector: %v", err)
		}
	}
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	s.router.Method(http.MethodGet, "/metrics", s.requireMetricsAuth(handler))
}

// requireMetricsAuth demands a bearer token. Without a configured token the
// endpoint is only open in dev.
func (s *Server) requireMetricsAuth(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.cfg.Agent.MetricsToken)
	if token == "" {
		if s.cfg.IsDev() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
	expected := "Bearer " + token
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != expected {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONPlain(w, http.StatusOK, map[string]any{
		"ok":         true,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
		"uptime_sec": int64(time.Since(processStartedAt).Seconds()),
		"app_env":    s.cfg.AppEnv,
	})
}

// readyz is ready once a refresh reached the backend, whatever the session.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSONPlain(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "starting"})
		return
	}
	out, at, ok := s.status.LastStatus()
	if !ok {
		writeJSONPlain(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "starting"})
		return
	}
	body := map[string]any{
		"ok":         out != auth.StatusUnavailable,
		"status":     out.String(),
		"checked_at": at.UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if out == auth.StatusUnavailable {
		code = http.StatusServiceUnavailable
	}
	writeJSONPlain(w, code, body)
}

func writeJSONPlain(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
