// Package store defines the relational store contract used by the catalog services.
// Each method is atomic on its own; nothing here spans a transaction across calls
// except ReplacePageLinks, which swaps a page's link sets in one step.
package store

import (
	"context"

	"github.com/colorbook/colorbook-server/internal/domain"
)

// CategoryStore persists categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	// UpdateCategory writes all fields and bumps Version. When expectedVersion is
	// non-zero the update only applies if the stored version matches.
	UpdateCategory(ctx context.Context, c *domain.Category, expectedVersion int) error
	DeleteCategory(ctx context.Context, id string) error
	// MissingCategoryIDs returns the ids that have no category row.
	MissingCategoryIDs(ctx context.Context, ids []string) ([]string, error)
}

// PageStore persists coloring pages. The row itself never carries link sets;
// those go through LinkStore.
type PageStore interface {
	CreatePage(ctx context.Context, p *domain.ColoringPage) error
	GetPage(ctx context.Context, id string) (*domain.ColoringPage, error)
	ListPages(ctx context.Context, categoryID string) ([]*domain.ColoringPage, error)
	UpdatePage(ctx context.Context, p *domain.ColoringPage, expectedVersion int) error
	DeletePage(ctx context.Context, id string) error
}

// TagStore persists tags.
type TagStore interface {
	GetTagsByNames(ctx context.Context, names []string) ([]*domain.Tag, error)
	// CreateTags inserts all tags or none. A duplicate name yields ErrAlreadyExists.
	CreateTags(ctx context.Context, tags []*domain.Tag) error
	GetTag(ctx context.Context, id string) (*domain.Tag, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
	RenameTag(ctx context.Context, id, name string) error
	DeleteTag(ctx context.Context, id string) error
}

// LinkStore persists the page/category and page/tag associations.
type LinkStore interface {
	AddPageCategories(ctx context.Context, pageID string, categoryIDs []string) error
	AddPageTags(ctx context.Context, pageID string, tagIDs []string) error
	DeletePageLinks(ctx context.Context, pageID string) error
	// ReplacePageLinks deletes every link of the page and inserts the new sets atomically.
	ReplacePageLinks(ctx context.Context, pageID string, categoryIDs, tagIDs []string) error
	GetPageCategoryIDs(ctx context.Context, pageID string) ([]string, error)
	GetPageTagIDs(ctx context.Context, pageID string) ([]string, error)
}

// Store is the full relational store.
type Store interface {
	CategoryStore
	PageStore
	TagStore
	LinkStore
}
