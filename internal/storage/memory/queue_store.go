// Package memory provides in-memory persistence for local development and
// tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// QueueStore is a map-backed store.QueueStore. Each operation copies data in
// and out, so callers never share slices or structs with the store.
type QueueStore struct {
	mu    sync.RWMutex
	items map[string]store.QueueItem
}

// NewQueueStore constructs an empty QueueStore.
func NewQueueStore() *QueueStore {
	return &QueueStore{items: make(map[string]store.QueueItem)}
}

// Save upserts one item keyed by URL. created_at and found_on_domain stick
// from the first insert, matching the Postgres upsert.
func (s *QueueStore) Save(_ context.Context, item store.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[item.URL]; ok {
		item.CreatedAt = existing.CreatedAt
		item.FoundOnDomain = existing.FoundOnDomain
	}
	s.items[item.URL] = item
	return nil
}

// FindByURL returns the item or store.ErrNotFound.
func (s *QueueStore) FindByURL(_ context.Context, url string) (store.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[url]
	if !ok {
		return store.QueueItem{}, store.ErrNotFound
	}
	return item, nil
}

// FindAll lists every item, oldest first.
func (s *QueueStore) FindAll(_ context.Context) ([]store.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(store.QueueItem) bool { return true }), nil
}

// FindByStatus lists items in the given status, oldest first.
func (s *QueueStore) FindByStatus(_ context.Context, status store.Status) ([]store.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(item store.QueueItem) bool { return item.Status == status }), nil
}

func (s *QueueStore) sorted(keep func(store.QueueItem) bool) []store.QueueItem {
	items := make([]store.QueueItem, 0, len(s.items))
	for _, item := range s.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].URL < items[j].URL
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}
