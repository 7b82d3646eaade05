package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/config"
	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/search"
	"github.com/colorbook/colorbook-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(cfg.Data.BasePath, "search"),
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.Store, log.Component("search")), nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index in the background
// when the catalog already has content.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := searchService.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	categories, err := storeHandle.ListCategories(ctx)
	if err != nil {
		return
	}
	pages, err := storeHandle.ListPages(ctx, "")
	if err != nil || len(categories)+len(pages) == 0 {
		return
	}

	log.Info("Search index is empty but the catalog is not, triggering initial reindex",
		"categories", len(categories),
		"pages", len(pages),
	)

	go func() {
		n, err := searchService.Reindex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "documents", n)
	}()
}
