package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/storage/memory"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestRequestStopIsOneWayAndIdempotent(t *testing.T) {
	c := NewCoordinator(zap.NewNop())
	assert.False(t, c.Stopping())

	c.RequestStop()
	assert.True(t, c.Stopping())

	c.RequestStop()
	assert.True(t, c.Stopping())
}

func TestRequeueInFlightResetsOnlyInProgressItems(t *testing.T) {
	queue := memory.NewQueueStore()
	ctx := context.Background()
	base := time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)

	seed := func(url string, status store.Status) {
		require.NoError(t, queue.Save(ctx, store.QueueItem{
			URL:       url,
			Status:    status,
			CreatedAt: base.Add(-time.Hour),
		}))
	}
	seed("https://a.example.com", store.StatusInProgress)
	seed("https://b.example.com", store.StatusCompleted)
	seed("https://c.example.com", store.StatusInProgress)
	seed("https://d.example.com", store.StatusStopped)

	clock := fixedClock{now: base}
	c := NewCoordinator(zap.NewNop())
	require.NoError(t, c.RequeueInFlight(ctx, queue, clock))

	for _, url := range []string{"https://a.example.com", "https://c.example.com"} {
		item, err := queue.FindByURL(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, store.StatusPending, item.Status)
		assert.Equal(t, "Application was shutdown", item.LastMessage)
		require.NotNil(t, item.LastCrawledAt)
		assert.Equal(t, base, *item.LastCrawledAt)
	}

	completed, err := queue.FindByURL(ctx, "https://b.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, completed.Status)
	assert.Empty(t, completed.LastMessage)

	stopped, err := queue.FindByURL(ctx, "https://d.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.StatusStopped, stopped.Status)
}

func TestRequeueInFlightWithEmptyQueue(t *testing.T) {
	c := NewCoordinator(nil)
	err := c.RequeueInFlight(context.Background(), memory.NewQueueStore(), fixedClock{now: time.Now()})
	require.NoError(t, err)
}
