package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/escrow-market/internal/observability"
	"go.uber.org/zap"
)

// PayoutProcessor is the part of the payout service the worker drives.
type PayoutProcessor interface {
	ProcessPayouts(ctx context.Context, batchSize int32) error
	ManualReviewQueueSize(ctx context.Context) (int64, error)
}

// PayoutWorker sends queued payouts to the provider in the background.
// Safe for concurrent instances thanks to FOR NO KEY UPDATE SKIP LOCKED.
type PayoutWorker struct {
	payouts      PayoutProcessor
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewPayoutWorker(payouts PayoutProcessor) *PayoutWorker {
	return &PayoutWorker{
		payouts:      payouts,
		pollInterval: 10 * time.Second,
		batchSize:    10,
		stopCh:       make(chan struct{}),
	}
}

func (w *PayoutWorker) WithPollInterval(interval time.Duration) *PayoutWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

func (w *PayoutWorker) WithBatchSize(size int32) *PayoutWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks until Stop is called or ctx is canceled.
func (w *PayoutWorker) Start(ctx context.Context) {
	zap.L().Info("payout worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("payout worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("payout worker stop signal received")
			return
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("payout batch failed", zap.Error(err))
			}
		}
	}
}

func (w *PayoutWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// ProcessOnce runs a single batch and refreshes the manual-review gauge.
func (w *PayoutWorker) ProcessOnce(ctx context.Context) error {
	err := w.payouts.ProcessPayouts(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("payout", "failed")
	} else {
		observability.IncrementWorkerRun("payout", "success")
	}

	size, qerr := w.payouts.ManualReviewQueueSize(ctx)
	if qerr != nil {
		zap.L().Warn("manual review queue size unavailable", zap.Error(qerr))
	} else {
		observability.SetManualReviewQueueSize(size)
	}
	return err
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PayoutWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *PayoutWorker) String() string {
	return fmt.Sprintf("PayoutWorker(interval=%v, batch=%d)", w.pollInterval, w.batchSize)
}
