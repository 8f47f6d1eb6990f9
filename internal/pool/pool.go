// Package pool dispatches crawl runs over a bounded worker pool.
//
// Sizing follows the executor it replaces: MinWorkers goroutines consume the
// backlog permanently, overflow workers spawn one-per-run once the backlog
// is full (up to MaxWorkers), and dispatch beyond that is rejected as a
// back-pressure signal the caller must handle.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/crawler"
	"github.com/heldertheking/search-engine-crawler/internal/metrics"
)

// ErrBacklogFull signals that a dispatch was rejected because the backlog
// and all overflow capacity are exhausted.
var ErrBacklogFull = errors.New("crawl backlog full")

// RunFunc executes one crawl run for a root URL. It must contain its own
// failures; the pool does not inspect outcomes.
type RunFunc func(ctx context.Context, rootURL string)

// Config bounds pool concurrency.
type Config struct {
	MinWorkers int
	MaxWorkers int
	Backlog    int
}

// Stats is a point-in-time view of pool occupancy for the status endpoint.
type Stats struct {
	ActiveRuns      int `json:"active_count"`
	MinWorkers      int `json:"min_workers"`
	MaxWorkers      int `json:"max_workers"`
	BacklogDepth    int `json:"backlog_size"`
	BacklogCapacity int `json:"backlog_capacity"`
}

// Pool fans crawl runs out to a bounded set of workers.
type Pool struct {
	cfg      Config
	run      RunFunc
	clock    crawler.Clock
	backlog  chan string
	registry *Registry
	logger   *zap.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	overflow int
	runCtx   context.Context
}

// New constructs a Pool. Start must be called before Dispatch.
func New(cfg Config, run RunFunc, clock crawler.Clock, logger *zap.Logger) *Pool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 5
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:      cfg,
		run:      run,
		clock:    clock,
		backlog:  make(chan string, cfg.Backlog),
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Start launches the resident workers. They exit when ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()
	for i := 0; i < p.cfg.MinWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started",
		zap.Int("min_workers", p.cfg.MinWorkers),
		zap.Int("max_workers", p.cfg.MaxWorkers),
		zap.Int("backlog", p.cfg.Backlog))
}

func (p *Pool) worker(ctx context.Context, index int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rootURL := <-p.backlog:
			p.execute(ctx, rootURL)
		}
	}
}

// Dispatch enqueues a crawl run. When the backlog is full an overflow worker
// is spawned if the pool is below MaxWorkers; otherwise the submission is
// rejected with ErrBacklogFull.
func (p *Pool) Dispatch(rootURL string) error {
	select {
	case p.backlog <- rootURL:
		return nil
	default:
	}

	p.mu.Lock()
	ctx := p.runCtx
	if ctx == nil || p.cfg.MinWorkers+p.overflow >= p.cfg.MaxWorkers {
		p.mu.Unlock()
		metrics.ObserveDispatchRejected()
		return ErrBacklogFull
	}
	p.overflow++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.overflow--
			p.mu.Unlock()
		}()
		p.execute(ctx, rootURL)
	}()
	return nil
}

func (p *Pool) execute(ctx context.Context, rootURL string) {
	run := ActiveRun{
		ID:        uuid.NewString(),
		URL:       rootURL,
		StartedAt: p.clock.Now(),
	}
	p.registry.register(run)
	metrics.IncActiveRuns()
	defer func() {
		p.registry.deregister(run.ID)
		metrics.DecActiveRuns()
	}()
	p.run(ctx, rootURL)
}

// Wait blocks until every worker goroutine has exited. Callers cancel the
// Start context first.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Registry exposes the active-run directory for the status endpoint.
func (p *Pool) Registry() *Registry {
	return p.registry
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		ActiveRuns:      p.registry.Len(),
		MinWorkers:      p.cfg.MinWorkers,
		MaxWorkers:      p.cfg.MaxWorkers,
		BacklogDepth:    len(p.backlog),
		BacklogCapacity: p.cfg.Backlog,
	}
}
