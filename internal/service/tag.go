package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/id"
	"github.com/colorbook/colorbook-server/internal/normalize"
	"github.com/colorbook/colorbook-server/internal/store"
)

// maxTagInsertAttempts bounds the re-read/re-insert loop when concurrent
// writers create overlapping tags.
const maxTagInsertAttempts = 3

// TagService resolves free-text tag names to tag rows and manages tags.
type TagService struct {
	store  store.TagStore
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store store.TagStore, logger *slog.Logger) *TagService {
	return &TagService{store: store, logger: logger}
}

// FindOrCreate returns the ids of the tags named in names, creating missing
// ones. Names are canonicalized first; blank input returns no ids without
// touching the store.
//
// A unique violation on insert means another writer created an overlapping
// tag in between. The set is re-read and the still-missing names retried,
// so concurrent callers converge on the same rows.
func (s *TagService) FindOrCreate(ctx context.Context, names []string) ([]string, error) {
	wanted := normalize.TagNames(names)
	if len(wanted) == 0 {
		return []string{}, nil
	}

	for attempt := 1; ; attempt++ {
		existing, err := s.store.GetTagsByNames(ctx, wanted)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabase, "could not look up tags")
		}

		missing := missingNames(wanted, existing)
		if len(missing) == 0 || attempt > maxTagInsertAttempts {
			if len(missing) > 0 {
				s.logger.Warn("tags still missing after retries", "missing", missing)
			}
			return tagIDs(existing), nil
		}

		created, err := newTags(missing)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "could not create tags")
		}

		err = s.store.CreateTags(ctx, created)
		if err == nil {
			return append(tagIDs(existing), tagIDs(created)...), nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Wrap(err, errors.CodeDatabase, "could not create tags")
		}

		s.logger.Debug("concurrent tag insert, re-reading",
			"attempt", attempt,
			"names", missing,
		)
	}
}

// ListTags returns all tags with page counts.
func (s *TagService) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not list tags")
	}
	return tags, nil
}

// GetTag returns one tag.
func (s *TagService) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	t, err := s.store.GetTag(ctx, tagID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFoundf("tag %s not found", tagID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not load tag")
	}
	return t, nil
}

// RenameTag changes a tag's name. The new name is canonicalized.
func (s *TagService) RenameTag(ctx context.Context, tagID, name string) (*domain.Tag, error) {
	canonical := normalize.TagName(name)
	if canonical == "" {
		return nil, errors.Validation("tag name cannot be blank")
	}

	err := s.store.RenameTag(ctx, tagID, canonical)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errors.NotFoundf("tag %s not found", tagID)
	case errors.Is(err, store.ErrAlreadyExists):
		return nil, errors.AlreadyExists("a tag named " + canonical + " already exists")
	case err != nil:
		return nil, errors.Wrap(err, errors.CodeDatabase, "could not rename tag")
	}

	s.logger.Info("tag renamed", "id", tagID, "name", canonical)
	return s.GetTag(ctx, tagID)
}

// DeleteTag removes a tag that no page uses.
func (s *TagService) DeleteTag(ctx context.Context, tagID string) error {
	err := s.store.DeleteTag(ctx, tagID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errors.NotFoundf("tag %s not found", tagID)
	case errors.Is(err, store.ErrInUse):
		return errors.Conflict("tag is still used by coloring pages")
	case err != nil:
		return errors.Wrap(err, errors.CodeDatabase, "could not delete tag")
	}

	s.logger.Info("tag deleted", "id", tagID)
	return nil
}

func missingNames(wanted []string, existing []*domain.Tag) []string {
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[strings.ToLower(t.Name)] = true
	}
	var missing []string
	for _, name := range wanted {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func newTags(names []string) ([]*domain.Tag, error) {
	now := time.Now()
	tags := make([]*domain.Tag, 0, len(names))
	for _, name := range names {
		tagID, err := id.Generate(id.PrefixTag)
		if err != nil {
			return nil, err
		}
		tags = append(tags, &domain.Tag{ID: tagID, Name: name, CreatedAt: now, UpdatedAt: now})
	}
	return tags, nil
}

func tagIDs(tags []*domain.Tag) []string {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
