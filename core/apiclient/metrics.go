package apiclient

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	csrfMissing  prometheus.Counter
	authFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logement",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API requests by method, endpoint class and status code.",
		}, []string{"method", "endpoint", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logement",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		csrfMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logement",
			Subsystem: "api",
			Name:      "csrf_missing_total",
			Help:      "Mutating requests sent without a CSRF token.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logement",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Responses with status 401.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.csrfMissing, m.authFailures)
	}
	return m
}

func (m *Metrics) observe(method, class string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, class, code).Inc()
	m.duration.WithLabelValues(method, class).Observe(d.Seconds())
}

// endpointClass folds numeric path segments so that label cardinality stays
// bounded: "paiements/12/mobile-money" becomes "paiements/{id}/mobile-money".
func endpointClass(endpoint string) string {
	endpoint = strings.Trim(endpoint, "/")
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseUint(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func (m *Metrics) csrfMissed() {
	if m != nil {
		m.csrfMissing.Inc()
	}
}

func (m *Metrics) authFailed() {
	if m != nil {
		m.authFailures.Inc()
	}
}
