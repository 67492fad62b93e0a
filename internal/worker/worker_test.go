package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayouts struct {
	batches  atomic.Int32
	lastSize atomic.Int32
	err      error
	queueErr error
}

func (f *fakePayouts) ProcessPayouts(_ context.Context, batchSize int32) error {
	f.batches.Add(1)
	f.lastSize.Store(batchSize)
	return f.err
}

func (f *fakePayouts) ManualReviewQueueSize(context.Context) (int64, error) {
	return 3, f.queueErr
}

type fakeReconciler struct {
	report service.ReconciliationReport
	err    error
	runs   atomic.Int32
}

func (f *fakeReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	f.runs.Add(1)
	return f.report, f.err
}

func TestPayoutWorker_ProcessOnceUsesBatchSize(t *testing.T) {
	payouts := &fakePayouts{}
	w := NewPayoutWorker(payouts).WithBatchSize(25)

	require.NoError(t, w.ProcessOnce(context.Background()))
	assert.Equal(t, int32(1), payouts.batches.Load())
	assert.Equal(t, int32(25), payouts.lastSize.Load())
}

func TestPayoutWorker_ProcessOnceReturnsBatchError(t *testing.T) {
	payouts := &fakePayouts{err: errors.New("db down"), queueErr: errors.New("db down")}
	w := NewPayoutWorker(payouts)

	require.EqualError(t, w.ProcessOnce(context.Background()), "db down")
}

func TestPayoutWorker_IgnoresNonPositiveOptions(t *testing.T) {
	w := NewPayoutWorker(&fakePayouts{}).WithBatchSize(0).WithPollInterval(-time.Second)
	assert.Equal(t, "PayoutWorker(interval=10s, batch=10)", w.String())
}

func TestPayoutWorker_RunPollsUntilStopped(t *testing.T) {
	payouts := &fakePayouts{}
	w := NewPayoutWorker(payouts).WithPollInterval(5 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return payouts.batches.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

func TestReconciliationWorker_RunOnce(t *testing.T) {
	balanced := &fakeReconciler{}
	assert.True(t, NewReconciliationWorker(balanced).RunOnce(context.Background()))

	drifted := &fakeReconciler{report: service.ReconciliationReport{
		Drifts: []repository.BalanceDrift{{AccountID: 7, Balance: 10, EntriesNet: 5}},
	}}
	assert.False(t, NewReconciliationWorker(drifted).RunOnce(context.Background()))

	failing := &fakeReconciler{err: errors.New("timeout")}
	assert.False(t, NewReconciliationWorker(failing).RunOnce(context.Background()))
}

func TestReconciliationWorker_RunsAtStartupAndStopsOnCancel(t *testing.T) {
	rec := &fakeReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewReconciliationWorker(rec).WithInterval(time.Hour)

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
