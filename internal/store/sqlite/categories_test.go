package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/colorbook/colorbook-server/internal/store"
)

func TestCreateAndGetCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := makeTestCategory("cat-1", "animals")
	if err := s.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	got, err := s.GetCategory(ctx, "cat-1")
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if got.Name != c.Name || got.Slug != c.Slug || got.Description != c.Description {
		t.Errorf("fields: got %+v, want %+v", got, c)
	}
	if !got.Thumbnail.Equal(c.Thumbnail) {
		t.Errorf("Thumbnail: got %v, want %v", got.Thumbnail, c.Thumbnail)
	}
	if got.Hero != nil {
		t.Errorf("Hero: expected nil, got %v", got.Hero)
	}
	if got.Version != 1 {
		t.Errorf("Version: got %d, want 1", got.Version)
	}
	if got.CreatedAt.Unix() != c.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, c.CreatedAt)
	}
}

func TestCreateCategory_DuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCategory(ctx, makeTestCategory("cat-1", "animals")); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	err := s.CreateCategory(ctx, makeTestCategory("cat-2", "animals"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetCategory_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCategory(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no categories, got %d", len(empty))
	}

	for _, slug := range []string{"vehicles", "animals", "flowers"} {
		if err := s.CreateCategory(ctx, makeTestCategory("cat-"+slug, slug)); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
	}

	got, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(got))
	}
	if got[0].Slug != "animals" || got[2].Slug != "vehicles" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].Slug, got[1].Slug, got[2].Slug)
	}
}

func TestUpdateCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := makeTestCategory("cat-1", "animals")
	if err := s.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	c.Name = "Wild Animals"
	c.Thumbnail = nil
	if err := s.UpdateCategory(ctx, c, 0); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if c.Version != 2 {
		t.Errorf("Version after update: got %d, want 2", c.Version)
	}

	got, err := s.GetCategory(ctx, "cat-1")
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if got.Name != "Wild Animals" {
		t.Errorf("Name: got %q", got.Name)
	}
	if got.Thumbnail != nil {
		t.Errorf("Thumbnail: expected nil, got %v", got.Thumbnail)
	}
}

func TestUpdateCategory_VersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := makeTestCategory("cat-1", "animals")
	if err := s.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	if err := s.UpdateCategory(ctx, c, 1); err != nil {
		t.Fatalf("UpdateCategory at version 1: %v", err)
	}

	// Stale version.
	err := s.UpdateCategory(ctx, c, 1)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestUpdateCategory_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateCategory(context.Background(), makeTestCategory("ghost", "ghost"), 3)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCategory(ctx, makeTestCategory("cat-1", "animals")); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := s.DeleteCategory(ctx, "cat-1"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := s.DeleteCategory(ctx, "cat-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestMissingCategoryIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCategory(ctx, makeTestCategory("cat-1", "animals")); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	missing, err := s.MissingCategoryIDs(ctx, []string{"cat-1", "cat-x", "cat-y"})
	if err != nil {
		t.Fatalf("MissingCategoryIDs: %v", err)
	}
	if len(missing) != 2 || missing[0] != "cat-x" || missing[1] != "cat-y" {
		t.Errorf("missing: got %v", missing)
	}

	none, err := s.MissingCategoryIDs(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("empty input: got %v, %v", none, err)
	}
}
