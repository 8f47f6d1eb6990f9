package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heldertheking/search-engine-crawler/internal/store"
)

func TestRestrictedLogAppend(t *testing.T) {
	mock := newMockPool(t)
	l := NewRestrictedLog(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawler_restricted_urls")).
		WithArgs(
			"https://example.com/private",
			"search-engine-bot/1.0",
			"Disallowed by robots.txt",
			testNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := l.Append(context.Background(), store.RestrictedURL{
		URL:       "https://example.com/private",
		UserAgent: "search-engine-bot/1.0",
		Reason:    "Disallowed by robots.txt",
		CreatedAt: testNow,
	})
	require.NoError(t, err)
}

func TestRestrictedLogAppendError(t *testing.T) {
	mock := newMockPool(t)
	l := NewRestrictedLog(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawler_restricted_urls")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	err := l.Append(context.Background(), store.RestrictedURL{
		URL:       "https://example.com",
		UserAgent: "search-engine-bot/1.0",
		Reason:    "Disallowed by robots.txt",
		CreatedAt: testNow,
	})
	assert.Error(t, err)
}
