package providers

import (
	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/config"
	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/service"
	"github.com/colorbook/colorbook-server/internal/validation"
)

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideHooks provides the post-commit hooks: the search index first, then
// the change stream.
func ProvideHooks(i do.Injector) (*service.Hooks, error) {
	log := do.MustInvoke[*logger.Logger](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	events := do.MustInvoke[*EventManagerHandle](i)

	return service.NewHooks(log.Component("hooks"), searchService, events.Manager), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, log.Component("tags")), nil
}

// ProvideCategoryService provides the category write service.
func ProvideCategoryService(i do.Injector) (*service.CategoryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coordinator := do.MustInvoke[*assets.Coordinator](i)
	hooks := do.MustInvoke[*service.Hooks](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	policy := service.AssetPolicy{
		Bucket:  cfg.Storage.CategoryBucket,
		Upsert:  cfg.Storage.Upsert,
		Quality: cfg.Transcode.Quality,
	}
	return service.NewCategoryService(storeHandle.Store, coordinator, policy, hooks, v, log.Component("categories")), nil
}

// ProvideColoringPageService provides the coloring page write service.
func ProvideColoringPageService(i do.Injector) (*service.ColoringPageService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tags := do.MustInvoke[*service.TagService](i)
	coordinator := do.MustInvoke[*assets.Coordinator](i)
	hooks := do.MustInvoke[*service.Hooks](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	policy := service.AssetPolicy{
		Bucket:  cfg.Storage.PageBucket,
		Upsert:  cfg.Storage.Upsert,
		Quality: cfg.Transcode.Quality,
	}
	return service.NewColoringPageService(storeHandle.Store, tags, coordinator, policy, hooks, v, log.Component("pages")), nil
}
