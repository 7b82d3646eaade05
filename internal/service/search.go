package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/search"
	"github.com/colorbook/colorbook-server/internal/store"
)

// SearchService keeps the catalog search index in step with committed
// writes and answers queries against it. It is registered as a CatalogHook.
type SearchService struct {
	index  *search.SearchIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, store: store, logger: logger}
}

// Search runs a catalog query.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search failed")
	}
	return result, nil
}

// CategoryChanged indexes the committed category.
func (s *SearchService) CategoryChanged(_ context.Context, c *domain.Category) error {
	return s.index.Put(search.CategoryToSearchDocument(c))
}

// CategoryDeleted removes the category from the index.
func (s *SearchService) CategoryDeleted(_ context.Context, id string) error {
	return s.index.Remove(id)
}

// PageChanged indexes the committed page with its tag names.
func (s *SearchService) PageChanged(ctx context.Context, p *domain.ColoringPage) error {
	names, err := s.tagNames(ctx, p.TagIDs)
	if err != nil {
		return err
	}
	return s.index.Put(search.PageToSearchDocument(p, names))
}

// PageDeleted removes the page from the index.
func (s *SearchService) PageDeleted(_ context.Context, id string) error {
	return s.index.Remove(id)
}

// DocumentCount reports how many documents the index holds.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// Reindex rebuilds the index from the store and swaps it in.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabase, "could not list categories")
	}
	pages, err := s.store.ListPages(ctx, "")
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabase, "could not list pages")
	}
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabase, "could not list tags")
	}
	names := make(map[string]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}

	docs := make([]*search.SearchDocument, 0, len(categories)+len(pages))
	for _, c := range categories {
		docs = append(docs, search.CategoryToSearchDocument(c))
	}
	for _, p := range pages {
		pageTags := make([]string, 0, len(p.TagIDs))
		for _, tagID := range p.TagIDs {
			if name, ok := names[tagID]; ok {
				pageTags = append(pageTags, name)
			}
		}
		docs = append(docs, search.PageToSearchDocument(p, pageTags))
	}

	if err := s.index.ReplaceAll(docs); err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "could not rebuild search index")
	}

	s.logger.Info("search index rebuilt",
		"categories", len(categories),
		"pages", len(pages),
		"duration", time.Since(start),
	)
	return len(docs), nil
}

func (s *SearchService) tagNames(ctx context.Context, tagIDs []string) ([]string, error) {
	names := make([]string, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		t, err := s.store.GetTag(ctx, tagID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, t.Name)
	}
	return names, nil
}
