package keeper

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satanpticoeur/social-logement-app/core/auth"
)

type JobStats struct {
	RunsTotal    uint64     `json:"runs_total"`
	ErrorsTotal  uint64     `json:"errors_total"`
	LastRunAtUTC *time.Time `json:"last_run_at_utc,omitempty"`
}

type Stats struct {
	Refresh   JobStats `json:"refresh"`
	Reconcile JobStats `json:"reconcile"`
}

type jobObs struct {
	runs      atomic.Uint64
	errors    atomic.Uint64
	lastRunNs atomic.Int64
}

func (o *jobObs) record(now time.Time, err error) {
	o.runs.Add(1)
	if err != nil {
		o.errors.Add(1)
	}
	o.lastRunNs.Store(now.UTC().UnixNano())
}

func (o *jobObs) snapshot() JobStats {
	s := JobStats{RunsTotal: o.runs.Load(), ErrorsTotal: o.errors.Load()}
	if ns := o.lastRunNs.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		s.LastRunAtUTC = &t
	}
	return s
}

type lastStatus struct {
	mu  sync.RWMutex
	out auth.StatusOutcome
	at  time.Time
	set bool
}

func (l *lastStatus) store(out auth.StatusOutcome, at time.Time) {
	l.mu.Lock()
	l.out, l.at, l.set = out, at, true
	l.mu.Unlock()
}

func (l *lastStatus) load() (auth.StatusOutcome, time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.out, l.at, l.set
}

func (k *Keeper) StatsSnapshot() Stats {
	if k == nil {
		return Stats{}
	}
	return Stats{Refresh: k.refreshObs.snapshot(), Reconcile: k.reconcileObs.snapshot()}
}

var (
	runsDesc = prometheus.NewDesc("logement_keeper_job_runs_total",
		"Background job runs.", []string{"job"}, nil)
	errorsDesc = prometheus.NewDesc("logement_keeper_job_errors_total",
		"Background job runs that failed.", []string{"job"}, nil)
	lastRunDesc = prometheus.NewDesc("logement_keeper_job_last_run_timestamp_seconds",
		"Unix time of the last job run.", []string{"job"}, nil)
	sessionDesc = prometheus.NewDesc("logement_keeper_session_authenticated",
		"1 when the last status refresh found an authenticated session.", nil, nil)
)

// Collector exposes the keeper statistics to prometheus.
type Collector struct {
	k *Keeper
}

func NewCollector(k *Keeper) *Collector { return &Collector{k: k} }

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runsDesc
	ch <- errorsDesc
	ch <- lastRunDesc
	ch <- sessionDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.k.StatsSnapshot()
	for job, s := range map[string]JobStats{"refresh": st.Refresh, "reconcile": st.Reconcile} {
		ch <- prometheus.MustNewConstMetric(runsDesc, prometheus.CounterValue, float64(s.RunsTotal), job)
		ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(s.ErrorsTotal), job)
		var last float64
		if s.LastRunAtUTC != nil {
			last = float64(s.LastRunAtUTC.Unix())
		}
		ch <- prometheus.MustNewConstMetric(lastRunDesc, prometheus.GaugeValue, last, job)
	}
	var authed float64
	if out, _, ok := c.k.LastStatus(); ok && out == auth.StatusAuthenticated {
		authed = 1
	}
	ch <- prometheus.MustNewConstMetric(sessionDesc, prometheus.GaugeValue, authed)
}
