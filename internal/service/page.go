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

// PageInput carries the fields of a coloring page write.
type PageInput struct {
	Title       string   `json:"title" validate:"required,max=200,sluggable"`
	Description string   `json:"description" validate:"max=4000"`
	Difficulty  string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	CategoryIDs []string `json:"category_ids" validate:"max=50,dive,required"`
	Tags        []string `json:"tags" validate:"max=50"`
	// Version, when non-zero on update, must match the stored version.
	Version int `json:"version" validate:"gte=0"`

	// Image is required on create and optional on update.
	Image *assets.File `json:"-"`
}

// ColoringPageService writes coloring pages: an original image plus its
// derived copy, a row, and category and tag links.
type ColoringPageService struct {
	store     store.Store
	tags      *TagService
	assets    *assets.Coordinator
	policy    AssetPolicy
	hooks     *Hooks
	validator *validation.Validator
	logger    *slog.Logger
}

// NewColoringPageService creates a new coloring page service.
func NewColoringPageService(
	store store.Store,
	tags *TagService,
	coordinator *assets.Coordinator,
	policy AssetPolicy,
	hooks *Hooks,
	validator *validation.Validator,
	logger *slog.Logger,
) *ColoringPageService {
	return &ColoringPageService{
		store:     store,
		tags:      tags,
		assets:    coordinator,
		policy:    policy,
		hooks:     hooks,
		validator: validator,
		logger:    logger,
	}
}

// Create runs upload -> row insert -> links. A failure at any step undoes
// the completed ones: links, then the row, then the blobs.
func (s *ColoringPageService) Create(ctx context.Context, in PageInput) (page *domain.ColoringPage, err error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	if in.Image == nil {
		return nil, errors.ValidationWithDetails("validation failed", map[string]string{"image": "is required"})
	}

	pageID, err := id.Generate(id.PrefixPage)
	if err != nil {
		return nil, errors.Internal("could not generate id").WithCause(err)
	}
	prefix, err := keyPrefix(pageID)
	if err != nil {
		return nil, errors.Internal("could not generate revision").WithCause(err)
	}

	sg := newSaga("create", "coloring_page", pageID, s.assets.CleanupTimeout(), s.logger)
	defer sg.recover(ctx, &err)

	// Start -> AssetsUploaded
	// rowGone is false while a page row may reference the uploaded blobs.
	rowGone := true
	upload, uploadErr := s.assets.UploadNew(ctx, *in.Image, s.policy.options(prefix, false))
	sg.onRollback("delete uploaded images", func(ctx context.Context) error {
		if !rowGone {
			s.logger.Warn("keeping uploaded images, page row still references them", "id", pageID)
			return nil
		}
		return s.assets.Compensate(ctx, upload.Refs()...)
	})
	if uploadErr != nil {
		return nil, sg.fail(ctx, uploadErr)
	}
	sg.advance(StateAssetsUploaded)

	// AssetsUploaded -> RowInserted
	now := time.Now()
	page = &domain.ColoringPage{
		ID:          pageID,
		Title:       in.Title,
		Slug:        normalize.Slugify(in.Title),
		Description: in.Description,
		Difficulty:  difficultyOrDefault(in.Difficulty),
		Original:    upload.Original,
		Derived:     upload.Derived,
		BlurHash:    upload.BlurHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePage(ctx, page); err != nil {
		return nil, sg.fail(ctx, pageWriteError(err, page.Title))
	}
	rowGone = false
	sg.onRollback("delete page row", func(ctx context.Context) error {
		if err := s.store.DeletePage(ctx, pageID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		rowGone = true
		return nil
	})
	sg.advance(StateRowInserted)

	// RowInserted -> LinksWritten
	sg.onRollback("delete page links", func(ctx context.Context) error {
		return s.store.DeletePageLinks(ctx, pageID)
	})
	tagIDs, err := s.tags.FindOrCreate(ctx, in.Tags)
	if err != nil {
		return nil, sg.fail(ctx, linkError(err, "could not resolve tags"))
	}
	if err := s.store.AddPageCategories(ctx, pageID, in.CategoryIDs); err != nil {
		return nil, sg.fail(ctx, linkError(err, "could not link categories"))
	}
	if err := s.store.AddPageTags(ctx, pageID, tagIDs); err != nil {
		return nil, sg.fail(ctx, linkError(err, "could not link tags"))
	}
	sg.advance(StateLinksWritten)
	sg.commit()

	page.CategoryIDs = emptyIfNil(in.CategoryIDs)
	page.TagIDs = tagIDs

	s.logger.Info("coloring page created",
		"id", page.ID,
		"slug", page.Slug,
		"categories", len(page.CategoryIDs),
		"tags", len(page.TagIDs),
	)
	s.hooks.pageChanged(ctx, page)
	return s.reload(ctx, page), nil
}

// Update replaces fields, links, and optionally the image. The old image is
// deleted only once the new row and links are committed; until then the row
// always names blobs that exist.
func (s *ColoringPageService) Update(ctx context.Context, pageID string, in PageInput) (page *domain.ColoringPage, err error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	old, err := s.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if in.Version > 0 && in.Version != old.Version {
		return nil, staleVersion(in.Version, old.Version)
	}

	sg := newSaga("update", "coloring_page", pageID, s.assets.CleanupTimeout(), s.logger)
	defer sg.recover(ctx, &err)

	var replacement *assets.Replacement
	// rowRestored is false while the row may still name the replacement blobs.
	rowRestored := true
	if in.Image != nil {
		prefix, err := keyPrefix(pageID)
		if err != nil {
			return nil, errors.Internal("could not generate revision").WithCause(err)
		}
		replacement, err = s.assets.Replace(ctx, *in.Image, old.Original, old.Derived, s.policy.options(prefix, false))
		if err != nil {
			return nil, sg.fail(ctx, err)
		}
		sg.onRollback("delete replacement images", func(ctx context.Context) error {
			if !rowRestored {
				s.logger.Warn("keeping replacement images, row still references them",
					"id", pageID,
					"original", replacement.Original,
					"derived", replacement.Derived,
				)
				return nil
			}
			return replacement.Abandon(ctx)
		})
	}
	sg.advance(StateAssetsUploaded)

	// Tags are shared rows; ones created here stay even if the update fails.
	tagIDs, err := s.tags.FindOrCreate(ctx, in.Tags)
	if err != nil {
		return nil, sg.fail(ctx, linkError(err, "could not resolve tags"))
	}

	updated := *old
	updated.Title = in.Title
	updated.Slug = normalize.Slugify(in.Title)
	updated.Description = in.Description
	updated.Difficulty = difficultyOrDefault(in.Difficulty)
	if replacement != nil {
		updated.Original = replacement.Original
		updated.Derived = replacement.Derived
		updated.BlurHash = replacement.BlurHash
	}
	updated.Touch()

	if err := s.store.UpdatePage(ctx, &updated, in.Version); err != nil {
		return nil, sg.fail(ctx, pageWriteError(err, updated.Title))
	}
	rowRestored = false
	sg.onRollback("restore page row", func(ctx context.Context) error {
		if err := s.store.UpdatePage(ctx, old, 0); err != nil {
			return err
		}
		rowRestored = true
		return nil
	})
	sg.advance(StateRowInserted)

	if err := s.store.ReplacePageLinks(ctx, pageID, in.CategoryIDs, tagIDs); err != nil {
		return nil, sg.fail(ctx, linkError(err, "could not update page links"))
	}
	sg.advance(StateLinksWritten)
	sg.commit()

	if replacement != nil {
		replacement.Confirm()
	}

	updated.CategoryIDs = emptyIfNil(in.CategoryIDs)
	updated.TagIDs = tagIDs

	s.logger.Info("coloring page updated",
		"id", updated.ID,
		"version", updated.Version,
		"image_replaced", replacement != nil,
	)
	s.hooks.pageChanged(ctx, &updated)
	return s.reload(ctx, &updated), nil
}

// Delete removes the row, whose links cascade, then the image pair. Image
// cleanup failures are logged and do not fail the delete.
func (s *ColoringPageService) Delete(ctx context.Context, pageID string) error {
	p, err := s.Get(ctx, pageID)
	if err != nil {
		return err
	}

	if err := s.store.DeletePage(ctx, pageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("coloring page %s not found", pageID)
		}
		return errors.Wrap(err, errors.CodeDatabase, "could not delete coloring page")
	}

	s.assets.DeletePair(ctx, p.Original, p.Derived)

	s.logger.Info("coloring page deleted", "id", pageID)
	s.hooks.pageDeleted(ctx, pageID)
	return nil
}

// Get returns one page with its links.
func (s *ColoringPageService) Get(ctx context.Context, pageID string) (*domain.ColoringPage, error) {
	p, err := s.store.GetPage(ctx, pageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFoundf("coloring page %s not found", pageID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not load coloring page")
	}
	return p, nil
}

// List returns pages, optionally only those in one category.
func (s *ColoringPageService) List(ctx context.Context, categoryID string) ([]*domain.ColoringPage, error) {
	pages, err := s.store.ListPages(ctx, categoryID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not list coloring pages")
	}
	return pages, nil
}

func (s *ColoringPageService) validate(ctx context.Context, in PageInput) error {
	if err := s.validator.Validate(in); err != nil {
		return err
	}
	if len(in.CategoryIDs) == 0 {
		return nil
	}

	missing, err := s.store.MissingCategoryIDs(ctx, in.CategoryIDs)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "could not check categories")
	}
	if len(missing) > 0 {
		return errors.ValidationWithDetails("unknown categories", map[string][]string{"category_ids": missing})
	}
	return nil
}

// reload returns the stored state after a commit, falling back to the
// in-memory copy if the read fails.
func (s *ColoringPageService) reload(ctx context.Context, p *domain.ColoringPage) *domain.ColoringPage {
	stored, err := s.store.GetPage(ctx, p.ID)
	if err != nil {
		s.logger.Debug("reload after write failed", "id", p.ID, "error", err)
		return p
	}
	return stored
}

func difficultyOrDefault(d string) string {
	if d == "" {
		return domain.DifficultyEasy
	}
	return d
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func linkError(err error, msg string) error {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) && domainErr.Code != errors.CodeDatabase {
		return err
	}
	return errors.Wrap(err, errors.CodeLinking, msg)
}

func pageWriteError(err error, title string) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return errors.AlreadyExists("a coloring page titled " + title + " already exists").WithCause(err)
	case errors.Is(err, store.ErrVersionConflict):
		return errors.Conflict("coloring page was changed by someone else; reload and try again").WithCause(err)
	case errors.Is(err, store.ErrNotFound):
		return errors.NotFound("coloring page no longer exists").WithCause(err)
	default:
		return errors.Wrap(err, errors.CodeDatabase, "could not save coloring page")
	}
}
