// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// Pool is the subset of pgxpool.Pool the stores use; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// QueueStore implements store.QueueStore on Postgres.
//
// Expected schema:
//
//	CREATE TABLE crawler_queue (
//	    url             TEXT PRIMARY KEY,
//	    status          TEXT NOT NULL,
//	    last_message    TEXT,
//	    last_crawled_at TIMESTAMPTZ,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    found_on_domain TEXT
//	);
type QueueStore struct {
	pool Pool
}

// NewQueueStore wraps an existing pool.
func NewQueueStore(pool Pool) *QueueStore {
	return &QueueStore{pool: pool}
}

const queueColumns = "url, status, last_message, last_crawled_at, created_at, found_on_domain"

// Save upserts one queue row keyed by URL. created_at and found_on_domain
// are set once at insertion and never overwritten.
func (s *QueueStore) Save(ctx context.Context, item store.QueueItem) error {
	query := `
		INSERT INTO crawler_queue (url, status, last_message, last_crawled_at, created_at, found_on_domain)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE
		SET status = EXCLUDED.status,
		    last_message = EXCLUDED.last_message,
		    last_crawled_at = EXCLUDED.last_crawled_at;
	`
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, query,
		item.URL,
		string(item.Status),
		nullString(item.LastMessage),
		item.LastCrawledAt,
		createdAt,
		nullString(item.FoundOnDomain),
	)
	if err != nil {
		return fmt.Errorf("upsert queue item: %w", err)
	}
	return nil
}

// FindByURL loads one row or returns store.ErrNotFound.
func (s *QueueStore) FindByURL(ctx context.Context, url string) (store.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM crawler_queue WHERE url = $1;`
	item, err := scanQueueItem(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.QueueItem{}, store.ErrNotFound
	}
	if err != nil {
		return store.QueueItem{}, fmt.Errorf("find queue item: %w", err)
	}
	return item, nil
}

// FindAll lists every queue row, oldest first.
func (s *QueueStore) FindAll(ctx context.Context) ([]store.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM crawler_queue ORDER BY created_at, url;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return collectQueueItems(rows)
}

// FindByStatus lists queue rows in the given status, oldest first.
func (s *QueueStore) FindByStatus(ctx context.Context, status store.Status) ([]store.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM crawler_queue WHERE status = $1 ORDER BY created_at, url;`
	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list queue items by status: %w", err)
	}
	return collectQueueItems(rows)
}

func collectQueueItems(rows pgx.Rows) ([]store.QueueItem, error) {
	defer rows.Close()
	var items []store.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

func scanQueueItem(row pgx.Row) (store.QueueItem, error) {
	var (
		item          store.QueueItem
		status        string
		lastMessage   *string
		foundOnDomain *string
	)
	err := row.Scan(&item.URL, &status, &lastMessage, &item.LastCrawledAt, &item.CreatedAt, &foundOnDomain)
	if err != nil {
		return store.QueueItem{}, err
	}
	item.Status = store.Status(status)
	if lastMessage != nil {
		item.LastMessage = *lastMessage
	}
	if foundOnDomain != nil {
		item.FoundOnDomain = *foundOnDomain
	}
	return item, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
