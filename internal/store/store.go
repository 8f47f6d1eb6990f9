// Package store declares the persistence interfaces and records for the
// crawl queue. Implementations live in other packages; this package must not
// import database drivers or concrete clients.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that the requested queue item does not exist.
var ErrNotFound = errors.New("queue item not found")

// Status is the lifecycle state of a queue item.
type Status string

// Queue item statuses persisted in crawler_queue.status.
const (
	// StatusPending marks an item awaiting pickup by the scheduler.
	StatusPending Status = "PENDING"
	// StatusInProgress marks an item currently being crawled.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted marks an item whose last run finished cleanly.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed marks an item whose last run ended in an error.
	StatusFailed Status = "FAILED"
	// StatusStopped marks a discovered domain awaiting manual approval.
	StatusStopped Status = "STOPPED"
)

// ParseStatus validates a raw status string from user input.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusStopped:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown queue status %q", raw)
	}
}

// QueueItem is one row of the crawl queue, keyed by root URL. There is one
// row per root domain, not per page.
type QueueItem struct {
	URL           string     `json:"url"`
	Status        Status     `json:"status"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	// FoundOnDomain is the root domain whose crawl discovered this one.
	// Empty for manually seeded entries.
	FoundOnDomain string `json:"found_on_domain,omitempty"`
}

// RestrictedURL is an append-only audit record of a robots-blocked fetch.
type RestrictedURL struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	UserAgent string    `json:"user_agent"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueStore persists queue items. Save is an atomic upsert keyed by URL;
// no cross-row locking is required of implementations.
type QueueStore interface {
	FindAll(ctx context.Context) ([]QueueItem, error)
	// FindByURL returns ErrNotFound when no row matches.
	FindByURL(ctx context.Context, url string) (QueueItem, error)
	FindByStatus(ctx context.Context, status Status) ([]QueueItem, error)
	Save(ctx context.Context, item QueueItem) error
}

// RestrictedLog records robots-blocked attempts. Append-only; the crawl
// engine never reads it back.
type RestrictedLog interface {
	Append(ctx context.Context, rec RestrictedURL) error
}
