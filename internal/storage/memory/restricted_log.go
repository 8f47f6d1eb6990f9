package memory

import (
	"context"
	"sync"

	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// RestrictedLog is a slice-backed store.RestrictedLog.
type RestrictedLog struct {
	mu      sync.Mutex
	nextID  int64
	records []store.RestrictedURL
}

// NewRestrictedLog constructs an empty RestrictedLog.
func NewRestrictedLog() *RestrictedLog {
	return &RestrictedLog{nextID: 1}
}

// Append records one restricted URL, assigning a sequential ID.
func (l *RestrictedLog) Append(_ context.Context, rec store.RestrictedURL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.ID = l.nextID
	l.nextID++
	l.records = append(l.records, rec)
	return nil
}

// Records returns a snapshot of everything appended so far.
func (l *RestrictedLog) Records() []store.RestrictedURL {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.RestrictedURL, len(l.records))
	copy(out, l.records)
	return out
}
