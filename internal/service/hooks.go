package service

import (
	"context"
	"log/slog"

	"github.com/colorbook/colorbook-server/internal/domain"
)

// CatalogHook is notified after a write commits, e.g. to refresh a search
// index or a page cache. Errors are logged and never fail the write.
type CatalogHook interface {
	CategoryChanged(ctx context.Context, c *domain.Category) error
	CategoryDeleted(ctx context.Context, id string) error
	PageChanged(ctx context.Context, p *domain.ColoringPage) error
	PageDeleted(ctx context.Context, id string) error
}

// Hooks fans a notification out to every registered hook.
type Hooks struct {
	hooks  []CatalogHook
	logger *slog.Logger
}

// NewHooks creates a Hooks set.
func NewHooks(logger *slog.Logger, hooks ...CatalogHook) *Hooks {
	return &Hooks{hooks: hooks, logger: logger}
}

// Add registers another hook.
func (h *Hooks) Add(hook CatalogHook) {
	h.hooks = append(h.hooks, hook)
}

func (h *Hooks) categoryChanged(ctx context.Context, c *domain.Category) {
	h.each("category_changed", c.ID, func(hook CatalogHook) error { return hook.CategoryChanged(ctx, c) })
}

func (h *Hooks) categoryDeleted(ctx context.Context, id string) {
	h.each("category_deleted", id, func(hook CatalogHook) error { return hook.CategoryDeleted(ctx, id) })
}

func (h *Hooks) pageChanged(ctx context.Context, p *domain.ColoringPage) {
	h.each("page_changed", p.ID, func(hook CatalogHook) error { return hook.PageChanged(ctx, p) })
}

func (h *Hooks) pageDeleted(ctx context.Context, id string) {
	h.each("page_deleted", id, func(hook CatalogHook) error { return hook.PageDeleted(ctx, id) })
}

func (h *Hooks) each(event, id string, fn func(CatalogHook) error) {
	if h == nil {
		return
	}
	for _, hook := range h.hooks {
		if err := fn(hook); err != nil {
			h.logger.Warn("catalog hook failed", "event", event, "id", id, "error", err)
		}
	}
}
