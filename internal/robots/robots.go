// Package robots enforces robots.txt directives with a per-host cache.
// Rules are fetched at most once per host per process lifetime; staleness
// until restart is accepted. The policy is fail-open: when robots.txt cannot
// be fetched or parsed, crawling is allowed.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/metrics"
)

const maxRobotsBody = 1 << 20

var allowAllRules = mustParse("")

func mustParse(body string) *robotstxt.RobotsData {
	data, err := robotstxt.FromString(body)
	if err != nil {
		panic(fmt.Sprintf("parse builtin robots rules: %v", err))
	}
	return data
}

// Cache memoizes parsed robots.txt rule sets keyed by scheme://host[:port].
// Entries never expire. Concurrent runs may race to warm the same host; both
// converge on one cached entry via LoadOrStore and the duplicate fetch is
// harmless.
type Cache struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

// NewCache builds a Cache with a bounded fetch timeout.
func NewCache(userAgent string, fetchTimeout time.Duration, logger *zap.Logger) *Cache {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed reports whether rawURL may be fetched under the host's robots.txt
// rules, warming the per-host cache as a side effect. Unparseable URLs are
// allowed through; the fetch itself will surface the real error.
func (c *Cache) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	rules := c.load(ctx, hostKey(parsed))
	group := rules.FindGroup(c.userAgent)
	if group == nil {
		return true
	}
	p := parsed.EscapedPath()
	if p == "" {
		p = "/"
	}
	return group.Test(p)
}

func (c *Cache) load(ctx context.Context, key string) *robotstxt.RobotsData {
	if v, ok := c.cache.Load(key); ok {
		return v.(*robotstxt.RobotsData)
	}
	rules := c.fetch(ctx, key)
	actual, _ := c.cache.LoadOrStore(key, rules)
	return actual.(*robotstxt.RobotsData)
}

// fetch retrieves and parses <hostKey>/robots.txt. Every failure path
// returns the allow-all rule set, which the caller caches so unreachable
// hosts are probed only once.
func (c *Cache) fetch(ctx context.Context, key string) *robotstxt.RobotsData {
	robotsURL := key + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Warn("bad robots request, allowing by default",
			zap.String("host", key), zap.Error(err))
		metrics.ObserveRobotsFetch("fallback")
		return allowAllRules
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("could not fetch robots.txt, allowing by default",
			zap.String("host", key), zap.Error(err))
		metrics.ObserveRobotsFetch("fallback")
		return allowAllRules
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close robots body failed", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots.txt unavailable, allowing by default",
			zap.String("host", key), zap.Int("status", resp.StatusCode))
		metrics.ObserveRobotsFetch("fallback")
		return allowAllRules
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		c.logger.Warn("read robots body failed, allowing by default",
			zap.String("host", key), zap.Error(err))
		metrics.ObserveRobotsFetch("fallback")
		return allowAllRules
	}
	rules, err := robotstxt.FromBytes(body)
	if err != nil {
		c.logger.Warn("parse robots.txt failed, allowing by default",
			zap.String("host", key), zap.Error(err))
		metrics.ObserveRobotsFetch("fallback")
		return allowAllRules
	}
	metrics.ObserveRobotsFetch("ok")
	return rules
}

// hostKey derives the cache key scheme://host[:port].
func hostKey(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
