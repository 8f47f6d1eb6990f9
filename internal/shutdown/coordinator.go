// Package shutdown owns the process-wide stop signal and the recovery
// contract that requeues interrupted work on termination.
package shutdown

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/crawler"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

const msgShutdown = "Application was shutdown"

// Coordinator is a one-way stop flag read at every suspension point in the
// crawl engine and by the scheduler. RUNNING -> STOPPING only; repeated stop
// requests are no-ops. Completion is observed through the pool's active-run
// registry draining, not through this flag.
type Coordinator struct {
	stopping atomic.Bool
	logger   *zap.Logger
}

// NewCoordinator constructs a Coordinator in the RUNNING state.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{logger: logger}
}

// RequestStop flips the flag. Idempotent.
func (c *Coordinator) RequestStop() {
	if c.stopping.CompareAndSwap(false, true) {
		c.logger.Info("shutdown requested, running crawlers will stop at the next checkpoint")
	}
}

// Stopping implements crawler.StopSignal.
func (c *Coordinator) Stopping() bool {
	return c.stopping.Load()
}

// RequeueInFlight resets every IN_PROGRESS queue item back to PENDING so no
// work is stranded across a restart. Called once, after the worker pool has
// drained, right before the process exits.
func (c *Coordinator) RequeueInFlight(ctx context.Context, queue store.QueueStore, clock crawler.Clock) error {
	items, err := queue.FindByStatus(ctx, store.StatusInProgress)
	if err != nil {
		return fmt.Errorf("scan in-progress items: %w", err)
	}
	for _, item := range items {
		item.Status = store.StatusPending
		item.LastMessage = msgShutdown
		now := clock.Now()
		item.LastCrawledAt = &now
		if err := queue.Save(ctx, item); err != nil {
			return fmt.Errorf("requeue %s: %w", item.URL, err)
		}
		c.logger.Info("requeued interrupted crawl", zap.String("url", item.URL))
	}
	return nil
}
