package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/service"
	"go.uber.org/zap"
)

// Reconciler runs one ledger integrity check.
type Reconciler interface {
	Run(ctx context.Context) (service.ReconciliationReport, error)
}

// ReconciliationWorker periodically checks that balances, entries and
// injected funds still agree. It never repairs anything; drift is reported.
type ReconciliationWorker struct {
	svc      Reconciler
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with a default hourly interval.
func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check once at startup so drift from a bad deploy shows up immediately.
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce reports whether the ledger was balanced. A failed query counts as unbalanced.
// A run may take at most half the interval so a slow scan cannot overlap the next tick.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.interval/2)
	defer cancel()

	report, err := w.svc.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return false
	}
	if !report.Balanced() {
		observability.IncrementWorkerRun("reconciliation", "imbalanced")
		zap.L().Error("ledger reconciliation found drift", zap.Strings("checks", report.Failed()))
		return false
	}
	observability.IncrementWorkerRun("reconciliation", "success")
	return true
}
