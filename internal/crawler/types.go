// Package crawler implements the crawl engine: recursive, depth-limited
// traversal of a single root domain with robots enforcement and persistent
// queue-state transitions.
package crawler

import (
	"context"
	"time"
)

// Document is a fetched and parsed page. The body is not retained; only the
// hyperlink targets and the title survive parsing.
type Document struct {
	URL        string
	Title      string
	StatusCode int
	Links      []string
}

// Fetcher turns a URL into a parsed document. Any non-2xx status or
// transport error is reported as a non-nil error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// RobotsPolicy answers whether a URL may be fetched under robots.txt rules.
type RobotsPolicy interface {
	Allowed(ctx context.Context, url string) bool
}

// StopSignal exposes the process-wide stop flag. The engine only reads it.
type StopSignal interface {
	Stopping() bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
