package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/metrics"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// Status messages written to queue rows. External observers (the read-only
// API) surface these verbatim, so they are part of the contract.
const (
	msgInProgress       = "Crawling in progress"
	msgCompleted        = "Crawling completed"
	msgFailed           = "Crawling failed"
	msgDiscoveredDomain = "Discovered new domain by crawler, awaiting approval."
	reasonRobots        = "Disallowed by robots.txt"
)

// EngineConfig controls one engine instance. The zero value is unusable;
// construct through NewEngine which applies defaults.
type EngineConfig struct {
	// MaxDepth is the deepest link level followed; the root is level zero.
	MaxDepth int
	// UserAgent is recorded on restricted-URL entries.
	UserAgent string
	// PolitenessDelay is the fixed pause before every fetch.
	PolitenessDelay time.Duration
}

// Engine runs crawl traversals. One Engine serves all concurrent runs; each
// run owns its visited set, so Run is safe to call from multiple goroutines.
type Engine struct {
	queue      store.QueueStore
	restricted store.RestrictedLog
	robots     RobotsPolicy
	fetcher    Fetcher
	stop       StopSignal
	clock      Clock
	cfg        EngineConfig
	logger     *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(
	queue store.QueueStore,
	restricted store.RestrictedLog,
	robots RobotsPolicy,
	fetcher Fetcher,
	stop StopSignal,
	clock Clock,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		queue:      queue,
		restricted: restricted,
		robots:     robots,
		fetcher:    fetcher,
		stop:       stop,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one crawl from rootURL. It mutates exactly one queue row (the
// root's) plus zero or more new STOPPED rows for discovered domains, and it
// never returns an error: every failure is contained as a FAILED status
// write on the root item.
func (e *Engine) Run(ctx context.Context, rootURL string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("unexpected error during crawl",
				zap.String("url", rootURL), zap.Any("panic", r))
			e.transition(ctx, rootURL, store.StatusFailed, fmt.Sprintf("%s: %v", msgFailed, r), true)
			metrics.ObservePageCrawled("failed")
		}
	}()

	e.logger.Info("starting crawl",
		zap.String("url", rootURL), zap.Int("max_depth", e.cfg.MaxDepth))
	visited := make(map[string]struct{})
	e.crawl(ctx, 0, rootURL, visited)
}

// crawl visits one URL and recurses into its same-domain links in document
// order. level is zero for the root.
func (e *Engine) crawl(ctx context.Context, level int, rawURL string, visited map[string]struct{}) {
	if e.stop.Stopping() {
		e.logger.Info("shutdown in progress, exiting crawl", zap.String("url", rawURL))
		return
	}
	if _, seen := visited[rawURL]; seen {
		e.logger.Debug("url already visited", zap.String("url", rawURL))
		return
	}
	if level > e.cfg.MaxDepth {
		e.logger.Debug("max crawl depth reached",
			zap.Int("max_depth", e.cfg.MaxDepth), zap.String("url", rawURL))
		return
	}

	if !e.robots.Allowed(ctx, rawURL) {
		e.logger.Warn("blocked by robots.txt", zap.String("url", rawURL))
		rec := store.RestrictedURL{
			URL:       rawURL,
			UserAgent: e.cfg.UserAgent,
			Reason:    reasonRobots,
			CreatedAt: e.clock.Now(),
		}
		if err := e.restricted.Append(ctx, rec); err != nil {
			e.logger.Error("restricted log append failed",
				zap.String("url", rawURL), zap.Error(err))
		}
		metrics.ObserveRestrictedURL()
		return
	}

	// Persisted before the fetch so external observers see live state.
	e.transition(ctx, rawURL, store.StatusInProgress, msgInProgress, false)

	if err := e.politenessPause(ctx); err != nil {
		e.logger.Error("politeness delay interrupted",
			zap.String("url", rawURL), zap.Error(err))
		e.transition(ctx, rawURL, store.StatusFailed, "Crawling interrupted: "+err.Error(), true)
		metrics.ObservePageCrawled("failed")
		return
	}
	if e.stop.Stopping() {
		e.logger.Info("shutdown in progress, exiting crawl after pause", zap.String("url", rawURL))
		return
	}

	doc, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		e.logger.Error("fetch failed", zap.String("url", rawURL), zap.Error(err))
		e.transition(ctx, rawURL, store.StatusFailed, msgFailed+": "+err.Error(), true)
		metrics.ObservePageCrawled("failed")
		return
	}
	visited[rawURL] = struct{}{}
	e.logger.Info("fetched page",
		zap.String("url", rawURL), zap.String("title", doc.Title))

	base := baseURLOrSelf(rawURL)
	for _, link := range doc.Links {
		if e.stop.Stopping() {
			e.logger.Info("shutdown in progress, exiting crawl during link processing",
				zap.String("url", rawURL))
			return
		}
		if !isHTTP(link) {
			e.logger.Debug("skipping non-http(s) link", zap.String("link", link))
			continue
		}
		if !validLink(link) {
			e.logger.Warn("invalid link found", zap.String("link", link))
			continue
		}
		if _, seen := visited[link]; seen {
			e.logger.Debug("skipping already visited link", zap.String("link", link))
			continue
		}
		linkBase := baseURLOrSelf(link)
		if linkBase != base {
			e.recordDiscoveredDomain(ctx, linkBase, base)
			continue
		}
		e.crawl(ctx, level+1, link, visited)
	}

	e.transition(ctx, rawURL, store.StatusCompleted, msgCompleted, true)
	metrics.ObservePageCrawled("completed")
}

// recordDiscoveredDomain creates a STOPPED queue row for a domain boundary,
// if none exists yet. The new domain is never crawled in this run; a human
// promotes the row to PENDING to approve it.
func (e *Engine) recordDiscoveredDomain(ctx context.Context, domainBase, foundOn string) {
	_, err := e.queue.FindByURL(ctx, domainBase)
	if err == nil {
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		e.logger.Error("queue lookup failed", zap.String("url", domainBase), zap.Error(err))
		return
	}
	item := store.QueueItem{
		URL:           domainBase,
		Status:        store.StatusStopped,
		LastMessage:   msgDiscoveredDomain,
		CreatedAt:     e.clock.Now(),
		FoundOnDomain: foundOn,
	}
	if err := e.queue.Save(ctx, item); err != nil {
		e.logger.Error("queue save failed", zap.String("url", domainBase), zap.Error(err))
		return
	}
	e.logger.Info("discovered new domain",
		zap.String("domain", domainBase), zap.String("found_on", foundOn))
	metrics.ObserveDomainDiscovered()
}

// transition applies a status change to the queue row for url, if one
// exists. A missing row is tolerated as a no-op: interior pages of a run
// have no row, and rows deleted mid-run must not resurrect.
func (e *Engine) transition(ctx context.Context, url string, status store.Status, message string, stamp bool) {
	item, err := e.queue.FindByURL(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		e.logger.Error("queue lookup failed", zap.String("url", url), zap.Error(err))
		return
	}
	item.Status = status
	item.LastMessage = message
	if stamp {
		now := e.clock.Now()
		item.LastCrawledAt = &now
	}
	if err := e.queue.Save(ctx, item); err != nil {
		e.logger.Error("queue save failed", zap.String("url", url), zap.Error(err))
	}
}

// politenessPause waits the configured delay before a fetch, returning an
// error only when the wait itself is interrupted by context cancellation.
func (e *Engine) politenessPause(ctx context.Context) error {
	if e.cfg.PolitenessDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.cfg.PolitenessDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
