package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/payments"
)

// StatusSource reports the latest session refresh.
type StatusSource interface {
	LastStatus() (auth.StatusOutcome, time.Time, bool)
}

// Worker is a background job runner started and stopped with the server.
type Worker interface {
	StartWithContext(ctx context.Context) error
	StopWithContext(ctx context.Context) error
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, paiementID int64) (payments.Resolution, error)
}

type ServerDeps struct {
	Status     StatusSource
	Worker     Worker
	Tracker    *payments.Tracker
	Reconciler PaymentReconciler
	// Registry receives the agent collectors; nil creates a private one.
	Registry   *prometheus.Registry
	Collectors []prometheus.Collector
}
