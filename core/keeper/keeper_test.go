package keeper

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/payments"
)

type fakeChecker struct {
	out   atomic.Int32
	calls atomic.Int32
}

func (f *fakeChecker) CheckStatus(context.Context) auth.StatusOutcome {
	f.calls.Add(1)
	return auth.StatusOutcome(f.out.Load())
}

type fakeReconciler struct {
	err   error
	calls atomic.Int32
}

func (f *fakeReconciler) RunOnce(context.Context) (payments.RunStats, error) {
	f.calls.Add(1)
	return payments.RunStats{Checked: 1, Pending: 1}, f.err
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{RefreshSchedule: "every five minutes"}, &fakeChecker{}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{}, nil, nil, nil)
	require.Error(t, err)
}

func TestStartRefreshesImmediately(t *testing.T) {
	chk := &fakeChecker{}
	k, err := New(Config{RefreshSchedule: "@every 1h", ReconcileSchedule: "@every 1h"}, chk, &fakeReconciler{}, nil)
	require.NoError(t, err)
	_, _, ok := k.LastStatus()
	require.False(t, ok)

	require.NoError(t, k.StartWithContext(context.Background()))
	require.NoError(t, k.Start(), "second start is a no-op")
	require.True(t, k.Running())
	require.Eventually(t, func() bool {
		_, _, ok := k.LastStatus()
		return ok
	}, time.Second, 5*time.Millisecond)
	out, _, _ := k.LastStatus()
	require.Equal(t, auth.StatusAuthenticated, out)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, k.StopWithContext(ctx))
	require.False(t, k.Running())
	k.Stop()
}

type blockingChecker struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingChecker) CheckStatus(context.Context) auth.StatusOutcome {
	b.calls.Add(1)
	<-b.release
	return auth.StatusAuthenticated
}

func TestStopWaitsForFirstRefresh(t *testing.T) {
	chk := &blockingChecker{release: make(chan struct{})}
	k, err := New(Config{RefreshSchedule: "@every 1h", ReconcileSchedule: "@every 1h"}, chk, nil, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start())
	require.Eventually(t, func() bool { return chk.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, k.StopWithContext(ctx), context.DeadlineExceeded)
	require.True(t, k.Running(), "refresh still in flight")
	require.ErrorIs(t, k.Start(), ErrStopping)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	require.ErrorIs(t, k.StopWithContext(ctx2), context.DeadlineExceeded, "second stop waits on the same drain")

	close(chk.release)
	require.Eventually(t, func() bool { return !k.Running() }, time.Second, 5*time.Millisecond)
	require.NoError(t, k.StopWithContext(context.Background()))
	_, _, ok := k.LastStatus()
	require.True(t, ok)
}

func TestRestartAfterStop(t *testing.T) {
	chk := &fakeChecker{}
	k, err := New(Config{RefreshSchedule: "@every 1h", ReconcileSchedule: "@every 1h"}, chk, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, k.Start())
		k.Stop()
		k.Stop()
		require.False(t, k.Running())
	}
	require.Equal(t, int32(2), chk.calls.Load(), "each start refreshes once and stop waits for it")
}

func TestScheduledJobsRun(t *testing.T) {
	chk := &fakeChecker{}
	rec := &fakeReconciler{}
	k, err := New(Config{RefreshSchedule: "@every 1s", ReconcileSchedule: "@every 1s"}, chk, rec, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start())
	defer k.Stop()
	require.Eventually(t, func() bool {
		return rec.calls.Load() >= 1 && chk.calls.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRefreshRecordsUnavailableBackend(t *testing.T) {
	chk := &fakeChecker{}
	chk.out.Store(int32(auth.StatusUnavailable))
	k, err := New(Config{}, chk, nil, nil)
	require.NoError(t, err)

	require.Equal(t, auth.StatusUnavailable, k.Refresh(context.Background()))
	st := k.StatsSnapshot()
	require.Equal(t, uint64(1), st.Refresh.RunsTotal)
	require.Equal(t, uint64(1), st.Refresh.ErrorsTotal)
	require.NotNil(t, st.Refresh.LastRunAtUTC)

	chk.out.Store(int32(auth.StatusAnonymous))
	k.Refresh(context.Background())
	require.Equal(t, uint64(1), k.StatsSnapshot().Refresh.ErrorsTotal, "anonymous is not a failure")
}

func TestReconcileWithoutReconciler(t *testing.T) {
	k, err := New(Config{}, &fakeChecker{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, k.Reconcile(context.Background()))
	require.Zero(t, k.StatsSnapshot().Reconcile.RunsTotal)
}

func TestCollector(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("boom")}
	k, err := New(Config{}, &fakeChecker{}, rec, nil)
	require.NoError(t, err)
	k.Refresh(context.Background())
	require.Error(t, k.Reconcile(context.Background()))

	c := NewCollector(k)
	require.Equal(t, 7, testutil.CollectAndCount(c))
	expected := `
# HELP logement_keeper_session_authenticated 1 when the last status refresh found an authenticated session.
# TYPE logement_keeper_session_authenticated gauge
logement_keeper_session_authenticated 1
# HELP logement_keeper_job_errors_total Background job runs that failed.
# TYPE logement_keeper_job_errors_total counter
logement_keeper_job_errors_total{job="reconcile"} 1
logement_keeper_job_errors_total{job="refresh"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"logement_keeper_session_authenticated", "logement_keeper_job_errors_total"))
}
