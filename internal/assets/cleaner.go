package assets

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/storage"
)

// Cleaner deletes superseded blobs in the background. Failures are logged and
// never reach the request that scheduled them. Shutdown waits for pending work.
type Cleaner struct {
	store   storage.ObjectStore
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewCleaner creates a Cleaner. Each scheduled batch is bounded by timeout.
func NewCleaner(store storage.ObjectStore, timeout time.Duration, logger *slog.Logger) *Cleaner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Cleaner{store: store, timeout: timeout, logger: logger}
}

// Schedule deletes refs asynchronously. After Shutdown the deletes run inline.
func (c *Cleaner) Schedule(reason string, refs ...*domain.AssetRef) {
	refs = compact(refs)
	if len(refs) == 0 {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.run(reason, refs)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.run(reason, refs)
	}()
}

// Wait blocks until every scheduled batch has finished.
func (c *Cleaner) Wait() {
	c.wg.Wait()
}

// Shutdown stops accepting background work and drains what is pending.
func (c *Cleaner) Shutdown() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Cleaner) run(reason string, refs []*domain.AssetRef) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	for _, ref := range refs {
		err := c.store.Delete(ctx, ref.Bucket, ref.Key)
		switch {
		case err == nil:
			c.logger.Debug("deleted asset", "reason", reason, "asset", ref.String())
		case errors.Is(err, storage.ErrObjectNotFound):
			c.logger.Debug("asset already gone", "reason", reason, "asset", ref.String())
		default:
			c.logger.Warn("background asset delete failed",
				"reason", reason,
				"asset", ref.String(),
				"error", err,
			)
		}
	}
}

func compact(refs []*domain.AssetRef) []*domain.AssetRef {
	out := make([]*domain.AssetRef, 0, len(refs))
	for _, r := range refs {
		if r != nil && r.Key != "" {
			out = append(out, r)
		}
	}
	return out
}
