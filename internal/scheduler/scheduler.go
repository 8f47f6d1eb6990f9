// Package scheduler promotes persisted PENDING queue items into active
// crawl runs on a fixed interval. It is the only path from stored state to
// execution.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/crawler"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// Dispatcher submits a crawl run for a root URL. Rejection (back-pressure)
// is reported as an error.
type Dispatcher interface {
	Dispatch(rootURL string) error
}

// Scheduler scans the queue store periodically and dispatches pending work.
type Scheduler struct {
	queue      store.QueueStore
	dispatcher Dispatcher
	stop       crawler.StopSignal
	interval   time.Duration
	cron       *cron.Cron
	logger     *zap.Logger
}

// New constructs a Scheduler ticking every interval.
func New(
	queue store.QueueStore,
	dispatcher Dispatcher,
	stop crawler.StopSignal,
	interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		queue:      queue,
		dispatcher: dispatcher,
		stop:       stop,
		interval:   interval,
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:     logger,
	}
}

// Start registers the periodic tick and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("register scheduler tick: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

// Tick dispatches every PENDING queue item. A rejected dispatch abandons the
// rest of the tick; the items stay PENDING and the next tick retries them.
// Ticks perform no per-domain dedup: an item dispatched in a previous tick
// is only seen again if something reset it to PENDING meanwhile.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.stop.Stopping() {
		return
	}
	items, err := s.queue.FindByStatus(ctx, store.StatusPending)
	if err != nil {
		s.logger.Error("pending scan failed", zap.Error(err))
		return
	}
	for _, item := range items {
		if s.stop.Stopping() {
			return
		}
		s.logger.Info("scheduled crawl triggered", zap.String("url", item.URL))
		if err := s.dispatcher.Dispatch(item.URL); err != nil {
			s.logger.Warn("dispatch rejected, deferring to next tick",
				zap.String("url", item.URL), zap.Error(err))
			return
		}
	}
}
