package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/heldertheking/search-engine-crawler/internal/store"
)

// RestrictedLog implements store.RestrictedLog on Postgres.
//
// Expected schema:
//
//	CREATE TABLE crawler_restricted_urls (
//	    id         BIGSERIAL PRIMARY KEY,
//	    url        TEXT NOT NULL,
//	    user_agent TEXT NOT NULL,
//	    reason     TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type RestrictedLog struct {
	pool Pool
}

// NewRestrictedLog wraps an existing pool.
func NewRestrictedLog(pool Pool) *RestrictedLog {
	return &RestrictedLog{pool: pool}
}

// Append inserts one audit row. There is no update or delete path.
func (l *RestrictedLog) Append(ctx context.Context, rec store.RestrictedURL) error {
	query := `
		INSERT INTO crawler_restricted_urls (url, user_agent, reason, created_at)
		VALUES ($1, $2, $3, $4);
	`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := l.pool.Exec(ctx, query, rec.URL, rec.UserAgent, rec.Reason, createdAt)
	if err != nil {
		return fmt.Errorf("append restricted url: %w", err)
	}
	return nil
}
