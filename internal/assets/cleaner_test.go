package assets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbook/colorbook-server/internal/domain"
)

func TestCleaner_ScheduleAndShutdown(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "pages", "a.png", []byte("x"), "", false))
	require.NoError(t, store.Put(ctx, "pages", "b.png", []byte("x"), "", false))
	store.failDelete["b.png"] = fmt.Errorf("flaky")

	c := NewCleaner(store, time.Second, discardLogger())
	c.Schedule("test",
		&domain.AssetRef{Bucket: "pages", Key: "a.png"},
		&domain.AssetRef{Bucket: "pages", Key: "b.png"},
		&domain.AssetRef{Bucket: "pages", Key: "gone.png"},
		nil,
	)
	require.NoError(t, c.Shutdown())

	assert.False(t, store.has("pages", "a.png"))
	assert.True(t, store.has("pages", "b.png"), "failed delete is logged, not retried")
	assert.Equal(t, 1, store.deleteCalls["gone.png"])
}

func TestCleaner_AfterShutdownRunsInline(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Put(context.Background(), "pages", "a.png", []byte("x"), "", false))

	c := NewCleaner(store, time.Second, discardLogger())
	require.NoError(t, c.Shutdown())

	c.Schedule("late", &domain.AssetRef{Bucket: "pages", Key: "a.png"})
	assert.False(t, store.has("pages", "a.png"))
}

func TestCleaner_EmptyScheduleIsNoop(t *testing.T) {
	store := newMemStore()
	c := NewCleaner(store, 0, discardLogger())
	c.Schedule("nothing")
	c.Wait()
	assert.Empty(t, store.deleteCalls)
}
