package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/id"
	"github.com/colorbook/colorbook-server/internal/normalize"
	"github.com/colorbook/colorbook-server/internal/store"
	"github.com/colorbook/colorbook-server/internal/validation"
)

// CategoryInput carries the fields of a category write. Nil files leave the
// current image in place on update.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120,sluggable"`
	Description string `json:"description" validate:"max=2000"`
	// Version, when non-zero on update, must match the stored version.
	Version int `json:"version" validate:"gte=0"`

	Thumbnail *assets.File `json:"-"`
	Hero      *assets.File `json:"-"`
}

// CategoryService writes categories. Thumbnail and hero are stored only in
// the derived encoding.
type CategoryService struct {
	store     store.CategoryStore
	assets    *assets.Coordinator
	policy    AssetPolicy
	hooks     *Hooks
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(
	store store.CategoryStore,
	coordinator *assets.Coordinator,
	policy AssetPolicy,
	hooks *Hooks,
	validator *validation.Validator,
	logger *slog.Logger,
) *CategoryService {
	return &CategoryService{
		store:     store,
		assets:    coordinator,
		policy:    policy,
		hooks:     hooks,
		validator: validator,
		logger:    logger,
	}
}

// Create uploads the images, then inserts the row. Any failure removes
// whatever was written.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (category *domain.Category, err error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	categoryID, err := id.Generate(id.PrefixCategory)
	if err != nil {
		return nil, errors.Internal("could not generate id").WithCause(err)
	}
	prefix, err := keyPrefix(categoryID)
	if err != nil {
		return nil, errors.Internal("could not generate revision").WithCause(err)
	}

	sg := newSaga("create", "category", categoryID, s.assets.CleanupTimeout(), s.logger)
	defer sg.recover(ctx, &err)

	// Start -> AssetsUploaded
	roles := []*roleUpload{
		{role: "thumbnail", file: in.Thumbnail},
		{role: "hero", file: in.Hero},
	}
	uploadErr := replaceRoles(ctx, s.assets, roles, s.policy.options(prefix, true))
	sg.onRollback("delete uploaded images", func(ctx context.Context) error {
		return abandonRoles(ctx, roles)
	})
	if uploadErr != nil {
		return nil, sg.fail(ctx, uploadErr)
	}
	sg.advance(StateAssetsUploaded)

	// AssetsUploaded -> RowInserted
	now := time.Now()
	category = &domain.Category{
		ID:          categoryID,
		Name:        in.Name,
		Slug:        normalize.Slugify(in.Name),
		Description: in.Description,
		Thumbnail:   derivedOf(roles[0]),
		Hero:        derivedOf(roles[1]),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, sg.fail(ctx, categoryWriteError(err, category.Name))
	}
	sg.onRollback("delete category row", func(ctx context.Context) error {
		return s.store.DeleteCategory(ctx, categoryID)
	})
	sg.advance(StateRowInserted)

	// Categories have no link rows.
	sg.advance(StateLinksWritten)
	sg.commit()

	s.logger.Info("category created", "id", category.ID, "slug", category.Slug)
	s.hooks.categoryChanged(ctx, category)
	return category, nil
}

// Update replaces fields and any supplied images. Old images are deleted only
// after the row naming the new ones is committed.
func (s *CategoryService) Update(ctx context.Context, categoryID string, in CategoryInput) (category *domain.Category, err error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	old, err := s.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if in.Version > 0 && in.Version != old.Version {
		return nil, staleVersion(in.Version, old.Version)
	}

	prefix, err := keyPrefix(categoryID)
	if err != nil {
		return nil, errors.Internal("could not generate revision").WithCause(err)
	}

	sg := newSaga("update", "category", categoryID, s.assets.CleanupTimeout(), s.logger)
	defer sg.recover(ctx, &err)

	roles := []*roleUpload{
		{role: "thumbnail", file: in.Thumbnail, old: old.Thumbnail},
		{role: "hero", file: in.Hero, old: old.Hero},
	}
	uploadErr := replaceRoles(ctx, s.assets, roles, s.policy.options(prefix, true))
	sg.onRollback("delete replacement images", func(ctx context.Context) error {
		return abandonRoles(ctx, roles)
	})
	if uploadErr != nil {
		return nil, sg.fail(ctx, uploadErr)
	}
	sg.advance(StateAssetsUploaded)

	updated := *old
	updated.Name = in.Name
	updated.Slug = normalize.Slugify(in.Name)
	updated.Description = in.Description
	if ref := derivedOf(roles[0]); ref != nil {
		updated.Thumbnail = ref
	}
	if ref := derivedOf(roles[1]); ref != nil {
		updated.Hero = ref
	}
	updated.Touch()

	if err := s.store.UpdateCategory(ctx, &updated, in.Version); err != nil {
		return nil, sg.fail(ctx, categoryWriteError(err, updated.Name))
	}
	sg.advance(StateRowInserted)
	sg.advance(StateLinksWritten)
	sg.commit()

	for _, r := range roles {
		if r.replacement != nil {
			r.replacement.Confirm()
		}
	}

	s.logger.Info("category updated", "id", updated.ID, "version", updated.Version)
	s.hooks.categoryChanged(ctx, &updated)
	return &updated, nil
}

// Delete removes the row, then its images. Image cleanup failures are logged.
func (s *CategoryService) Delete(ctx context.Context, categoryID string) error {
	c, err := s.Get(ctx, categoryID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("category %s not found", categoryID)
		}
		return errors.Wrap(err, errors.CodeDatabase, "could not delete category")
	}

	s.assets.DeletePair(ctx, c.Thumbnail, c.Hero)

	s.logger.Info("category deleted", "id", categoryID)
	s.hooks.categoryDeleted(ctx, categoryID)
	return nil
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFoundf("category %s not found", categoryID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not load category")
	}
	return c, nil
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not list categories")
	}
	return categories, nil
}

func derivedOf(r *roleUpload) *domain.AssetRef {
	if r.replacement == nil {
		return nil
	}
	return r.replacement.Derived
}

func abandonRoles(ctx context.Context, roles []*roleUpload) error {
	var errs []error
	for _, r := range roles {
		if r.replacement != nil {
			errs = append(errs, r.replacement.Abandon(ctx))
		}
	}
	return errors.Join(errs...)
}

func categoryWriteError(err error, name string) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return errors.AlreadyExists("a category named " + name + " already exists").WithCause(err)
	case errors.Is(err, store.ErrVersionConflict):
		return errors.Conflict("category was changed by someone else; reload and try again").WithCause(err)
	case errors.Is(err, store.ErrNotFound):
		return errors.NotFound("category no longer exists").WithCause(err)
	default:
		return errors.Wrap(err, errors.CodeDatabase, "could not save category")
	}
}

func staleVersion(sent, current int) error {
	return errors.Conflict("this item was changed by someone else; reload and try again").
		WithDetails(map[string]int{"version": sent, "current_version": current})
}
