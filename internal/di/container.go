// Package di provides dependency injection configuration for the Colorbook server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/config"
	"github.com/colorbook/colorbook-server/internal/di/providers"
	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideObjectStore)
	do.Provide(injector, providers.ProvideTranscoder)
	do.Provide(injector, providers.ProvideCleaner)
	do.Provide(injector, providers.ProvideCoordinator)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Change stream
	do.Provide(injector, providers.ProvideEventManager)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideHooks)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideCategoryService)
	do.Provide(injector, providers.ProvideColoringPageService)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.ObjectStoreHandle](injector)
	_ = do.MustInvoke[*assets.Coordinator](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*providers.EventManagerHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.CategoryService](injector)
	_ = do.MustInvoke[*service.ColoringPageService](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
