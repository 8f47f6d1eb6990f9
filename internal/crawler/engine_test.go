package crawler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/crawler"
	"github.com/heldertheking/search-engine-crawler/internal/storage/memory"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]crawler.Document
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (crawler.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return crawler.Document{}, err
	}
	doc, ok := f.pages[url]
	if !ok {
		return crawler.Document{URL: url, StatusCode: 200}, nil
	}
	return doc, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type stubRobots struct {
	disallowed map[string]bool
}

func (r stubRobots) Allowed(_ context.Context, url string) bool {
	return !r.disallowed[url]
}

type stubStop struct {
	stopping atomic.Bool
}

func (s *stubStop) Stopping() bool { return s.stopping.Load() }

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, queue store.QueueStore, restricted store.RestrictedLog, fetcher crawler.Fetcher, robots crawler.RobotsPolicy, stop crawler.StopSignal, cfg crawler.EngineConfig) *crawler.Engine {
	t.Helper()
	if robots == nil {
		robots = stubRobots{}
	}
	if stop == nil {
		stop = &stubStop{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "test-bot/1.0"
	}
	return crawler.NewEngine(queue, restricted, robots, fetcher, stop, fakeClock{now: testNow}, cfg, zap.NewNop())
}

func seedPending(t *testing.T, queue store.QueueStore, url string) {
	t.Helper()
	err := queue.Save(context.Background(), store.QueueItem{
		URL:       url,
		Status:    store.StatusPending,
		CreatedAt: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func TestRunCompletesAndDiscoversDomains(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	restricted := memory.NewRestrictedLog()
	seedPending(t, queue, root)

	fetcher := &fakeFetcher{pages: map[string]crawler.Document{
		root: {
			URL:        root,
			Title:      "Example",
			StatusCode: 200,
			Links: []string{
				"https://example.com/p1",
				"https://other.example.net/landing",
				"mailto:hi@example.com",
			},
		},
		"https://example.com/p1": {
			URL:        "https://example.com/p1",
			StatusCode: 200,
			Links:      []string{"https://example.com/p2"},
		},
	}}

	engine := newTestEngine(t, queue, restricted, fetcher, nil, nil, crawler.EngineConfig{MaxDepth: 1})
	engine.Run(context.Background(), root)

	// Depth limit 1: root and p1 are fetched, p2 is one level too deep.
	assert.Equal(t, []string{root, "https://example.com/p1"}, fetcher.fetched())

	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, item.Status)
	assert.Equal(t, "Crawling completed", item.LastMessage)
	require.NotNil(t, item.LastCrawledAt)
	assert.Equal(t, testNow, *item.LastCrawledAt)

	discovered, err := queue.FindByURL(context.Background(), "https://other.example.net")
	require.NoError(t, err)
	assert.Equal(t, store.StatusStopped, discovered.Status)
	assert.Equal(t, "Discovered new domain by crawler, awaiting approval.", discovered.LastMessage)
	assert.Equal(t, "https://example.com", discovered.FoundOnDomain)

	assert.Empty(t, restricted.Records())
}

func TestRunMarksFailedOnFetchError(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	fetcher := &fakeFetcher{errs: map[string]error{
		root: errors.New("connection refused"),
	}}

	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, nil, crawler.EngineConfig{MaxDepth: 3})
	engine.Run(context.Background(), root)

	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, item.Status)
	assert.Equal(t, "Crawling failed: connection refused", item.LastMessage)
	require.NotNil(t, item.LastCrawledAt)
}

func TestRobotsDisallowedWritesRestrictedRecord(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	restricted := memory.NewRestrictedLog()
	seedPending(t, queue, root)

	fetcher := &fakeFetcher{}
	robots := stubRobots{disallowed: map[string]bool{root: true}}

	engine := newTestEngine(t, queue, restricted, fetcher, robots, nil, crawler.EngineConfig{MaxDepth: 3})
	engine.Run(context.Background(), root)

	assert.Empty(t, fetcher.fetched())

	// The row is never touched: the robots gate fires before the
	// IN_PROGRESS transition.
	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, item.Status)

	records := restricted.Records()
	require.Len(t, records, 1)
	assert.Equal(t, root, records[0].URL)
	assert.Equal(t, "test-bot/1.0", records[0].UserAgent)
	assert.Equal(t, "Disallowed by robots.txt", records[0].Reason)
	assert.Equal(t, testNow, records[0].CreatedAt)
}

func TestLinksFetchedOnlyOnce(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	// p1 and p2 both link back to each other and to the root; the visited
	// set must keep every page to a single fetch.
	fetcher := &fakeFetcher{pages: map[string]crawler.Document{
		root: {URL: root, StatusCode: 200, Links: []string{
			"https://example.com/p1",
			"https://example.com/p1",
			"https://example.com/p2",
		}},
		"https://example.com/p1": {URL: "https://example.com/p1", StatusCode: 200, Links: []string{
			"https://example.com/p2",
			"https://example.com",
		}},
		"https://example.com/p2": {URL: "https://example.com/p2", StatusCode: 200, Links: []string{
			"https://example.com/p1",
		}},
	}}

	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, nil, crawler.EngineConfig{MaxDepth: 5})
	engine.Run(context.Background(), root)

	calls := fetcher.fetched()
	seen := make(map[string]int)
	for _, url := range calls {
		seen[url]++
	}
	assert.Equal(t, map[string]int{
		root:                     1,
		"https://example.com/p1": 1,
		"https://example.com/p2": 1,
	}, seen)
}

func TestStopSignalAbortsBeforeAnyMutation(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	stop := &stubStop{}
	stop.stopping.Store(true)
	fetcher := &fakeFetcher{}

	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, stop, crawler.EngineConfig{MaxDepth: 3})
	engine.Run(context.Background(), root)

	assert.Empty(t, fetcher.fetched())
	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, item.Status)
}

func TestPolitenessInterruptionMarksFailed(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, nil, crawler.EngineConfig{
		MaxDepth:        3,
		PolitenessDelay: time.Minute,
	})
	engine.Run(ctx, root)

	assert.Empty(t, fetcher.fetched())
	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, item.Status)
	assert.Equal(t, "Crawling interrupted: context canceled", item.LastMessage)
}

func TestDiscoveredDomainRowIsNotOverwritten(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	// The target domain already has a COMPLETED row from an earlier run;
	// rediscovering it must leave that row alone.
	earlier := testNow.Add(-2 * time.Hour)
	require.NoError(t, queue.Save(context.Background(), store.QueueItem{
		URL:           "https://other.example.net",
		Status:        store.StatusCompleted,
		LastMessage:   "Crawling completed",
		LastCrawledAt: &earlier,
		CreatedAt:     earlier,
	}))

	fetcher := &fakeFetcher{pages: map[string]crawler.Document{
		root: {URL: root, StatusCode: 200, Links: []string{
			"https://other.example.net/page",
		}},
	}}

	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, nil, crawler.EngineConfig{MaxDepth: 3})
	engine.Run(context.Background(), root)

	item, err := queue.FindByURL(context.Background(), "https://other.example.net")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, item.Status)
	assert.Equal(t, "Crawling completed", item.LastMessage)
}

func TestConcurrentRunsOnSameRootBothComplete(t *testing.T) {
	const root = "https://example.com"
	queue := memory.NewQueueStore()
	seedPending(t, queue, root)

	fetcher := &fakeFetcher{pages: map[string]crawler.Document{
		root: {URL: root, StatusCode: 200},
	}}
	engine := newTestEngine(t, queue, memory.NewRestrictedLog(), fetcher, nil, nil, crawler.EngineConfig{MaxDepth: 3})

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Run(context.Background(), root)
		}()
	}
	wg.Wait()

	assert.Len(t, fetcher.fetched(), 2)
	item, err := queue.FindByURL(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, item.Status)
}
