// Package keeper runs the background jobs of the agent: a periodic session
// status refresh and the payment reconciliation loop.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/payments"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

const (
	DefaultRefreshSchedule   = "@every 5m"
	DefaultReconcileSchedule = "@every 30s"
)

// ErrStopping is returned by Start while a previous Stop is still draining jobs.
var ErrStopping = errors.New("keeper: still stopping")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type StatusChecker interface {
	CheckStatus(ctx context.Context) auth.StatusOutcome
}

type Reconciler interface {
	RunOnce(ctx context.Context) (payments.RunStats, error)
}

type Config struct {
	RefreshSchedule   string
	ReconcileSchedule string
}

type Keeper struct {
	cfg        Config
	status     StatusChecker
	reconciler Reconciler
	logger     *utils.Logger

	refreshObs   jobObs
	reconcileObs jobObs
	last         lastStatus

	mu       sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	running  bool
	draining chan struct{}
	// first tracks the refresh started by Start outside the cron.
	first sync.WaitGroup
}

// New builds a keeper. reconciler may be nil when payments are not followed.
func New(cfg Config, status StatusChecker, reconciler Reconciler, logger *utils.Logger) (*Keeper, error) {
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = DefaultRefreshSchedule
	}
	if cfg.ReconcileSchedule == "" {
		cfg.ReconcileSchedule = DefaultReconcileSchedule
	}
	if _, err := parser.Parse(cfg.RefreshSchedule); err != nil {
		return nil, fmt.Errorf("refresh schedule: %w", err)
	}
	if _, err := parser.Parse(cfg.ReconcileSchedule); err != nil {
		return nil, fmt.Errorf("reconcile schedule: %w", err)
	}
	if status == nil {
		return nil, errors.New("status checker is required")
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Keeper{cfg: cfg, status: status, reconciler: reconciler, logger: logger}, nil
}

func (k *Keeper) Start() error {
	return k.StartWithContext(context.Background())
}

// StartWithContext schedules the jobs and runs a first refresh right away.
func (k *Keeper) StartWithContext(ctx context.Context) error {
	k.mu.Lock()
	if k.draining != nil {
		k.mu.Unlock()
		return ErrStopping
	}
	if k.running {
		k.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.PrintfLogger(k.logger)), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(k.cfg.RefreshSchedule, func() { k.Refresh(runCtx) }); err != nil {
		k.mu.Unlock()
		cancel()
		return err
	}
	if k.reconciler != nil {
		if _, err := c.AddFunc(k.cfg.ReconcileSchedule, func() { _ = k.Reconcile(runCtx) }); err != nil {
			k.mu.Unlock()
			cancel()
			return err
		}
	}
	k.cron = c
	k.cancel = cancel
	k.running = true
	k.first.Add(1)
	k.mu.Unlock()

	c.Start()
	go func() {
		defer k.first.Done()
		k.Refresh(runCtx)
	}()
	return nil
}

func (k *Keeper) Stop() {
	_ = k.StopWithContext(context.Background())
}

// StopWithContext stops scheduling and waits for running jobs, including the
// first refresh, or for ctx. When ctx ends first the jobs keep draining in
// the background and the keeper reports Running until they are done; calling
// Stop again waits on the same drain.
func (k *Keeper) StopWithContext(ctx context.Context) error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	drained := k.draining
	if drained == nil {
		drained = make(chan struct{})
		k.draining = drained
		k.cancel()
		cronDone := k.cron.Stop()
		go func() {
			<-cronDone.Done()
			k.first.Wait()
			k.mu.Lock()
			k.cron, k.cancel, k.running, k.draining = nil, nil, false, nil
			k.mu.Unlock()
			close(drained)
		}()
	}
	k.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running is true from Start until every job has drained after Stop.
func (k *Keeper) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// Refresh re-checks the session with the backend.
func (k *Keeper) Refresh(ctx context.Context) auth.StatusOutcome {
	out := k.status.CheckStatus(ctx)
	now := time.Now()
	var err error
	if out == auth.StatusUnavailable {
		err = errors.New("backend unavailable")
		k.logger.Warnf("keeper refresh: backend unavailable")
	}
	k.refreshObs.record(now, err)
	k.last.store(out, now)
	return out
}

// Reconcile runs one payment reconciliation pass.
func (k *Keeper) Reconcile(ctx context.Context) error {
	if k.reconciler == nil {
		return nil
	}
	st, err := k.reconciler.RunOnce(ctx)
	k.reconcileObs.record(time.Now(), err)
	if err != nil {
		k.logger.Errorf("keeper reconcile: %v", err)
		return err
	}
	if st.Checked > 0 {
		k.logger.With("checked", st.Checked, "confirmed", st.Confirmed, "failed", st.Failed, "expired", st.Expired).
			Debugf("reconcile pass")
	}
	return nil
}

// LastStatus reports the outcome of the latest refresh. ok is false before
// the first refresh completes.
func (k *Keeper) LastStatus() (auth.StatusOutcome, time.Time, bool) {
	return k.last.load()
}
