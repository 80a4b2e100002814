package payments

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
	"github.com/satanpticoeur/social-logement-app/core/notify"
	"github.com/satanpticoeur/social-logement-app/core/rental"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

const DefaultMaxAttempts = 20

// PaymentSource reads the authoritative payment status.
type PaymentSource interface {
	Payment(ctx context.Context, paiementID int64) (rental.Payment, error)
}

type Resolution int

const (
	Unresolved Resolution = iota
	Confirmed
	Failed
	Expired
)

func (r Resolution) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	case Expired:
		return "expired"
	default:
		return "pending"
	}
}

type RunStats struct {
	Checked   int
	Confirmed int
	Failed    int
	Expired   int
	Pending   int
}

type Reconciler struct {
	source      PaymentSource
	tracker     *Tracker
	notifier    notify.Notifier
	logger      *utils.Logger
	maxAttempts int
}

func NewReconciler(source PaymentSource, tracker *Tracker, notifier notify.Notifier, logger *utils.Logger, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Reconciler{source: source, tracker: tracker, notifier: notifier, logger: logger, maxAttempts: maxAttempts}
}

// RunOnce checks every pending payment once.
func (r *Reconciler) RunOnce(ctx context.Context) (RunStats, error) {
	var st RunStats
	for _, p := range r.tracker.List() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Checked++
		res, err := r.reconcile(ctx, p)
		if err != nil {
			r.logger.Warnf("payment %d reconcile: %v", p.PaiementID, err)
		}
		switch res {
		case Confirmed:
			st.Confirmed++
		case Failed:
			st.Failed++
		case Expired:
			st.Expired++
		default:
			st.Pending++
		}
	}
	return st, nil
}

// Reconcile checks a single payment, tracking it first if needed.
func (r *Reconciler) Reconcile(ctx context.Context, paiementID int64) (Resolution, error) {
	p, ok := r.tracker.Get(paiementID)
	if !ok {
		r.tracker.Track(paiementID, "")
		p, _ = r.tracker.Get(paiementID)
	}
	return r.reconcile(ctx, p)
}

// Await polls until the payment resolves or ctx ends.
func (r *Reconciler) Await(ctx context.Context, paiementID int64, every time.Duration) (Resolution, error) {
	if every <= 0 {
		every = 3 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		res, err := r.Reconcile(ctx, paiementID)
		if res != Unresolved {
			return res, err
		}
		select {
		case <-ctx.Done():
			return Unresolved, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, p Pending) (Resolution, error) {
	pay, err := r.source.Payment(ctx, p.PaiementID)
	if err != nil {
		if status, ok := apiclient.StatusOf(err); ok && status == http.StatusNotFound {
			r.tracker.remove(p.PaiementID)
			notify.Warning(r.notifier, "Paiement introuvable", fmt.Sprintf("Le paiement #%d n'existe plus.", p.PaiementID))
			return Expired, err
		}
		return r.retry(p), err
	}
	switch {
	case pay.Paid():
		r.tracker.remove(p.PaiementID)
		notify.Success(r.notifier, "Paiement confirmé", fmt.Sprintf("Le paiement #%d de %s a été enregistré.", p.PaiementID, pay.Montant))
		r.logger.With("paiement_id", p.PaiementID).Printf("payment confirmed")
		return Confirmed, nil
	case p.gatewayFailed() && pay.Statut == rental.PaymentUnpaid:
		r.tracker.remove(p.PaiementID)
		notify.Error(r.notifier, "Paiement échoué", fmt.Sprintf("Le paiement #%d n'a pas abouti.", p.PaiementID))
		return Failed, nil
	}
	return r.retry(p), nil
}

func (r *Reconciler) retry(p Pending) Resolution {
	if n := r.tracker.attempt(p.PaiementID); n < r.maxAttempts {
		return Unresolved
	}
	r.tracker.remove(p.PaiementID)
	notify.Warning(r.notifier, "Paiement en attente", fmt.Sprintf("Le paiement #%d n'a pas été confirmé par le serveur.", p.PaiementID))
	return Expired
}
