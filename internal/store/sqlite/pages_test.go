package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/store"
)

func TestCreateAndGetPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := makeTestPage("page-1", "happy-cat")
	if err := s.CreatePage(ctx, p); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	got, err := s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got.Title != p.Title || got.Difficulty != p.Difficulty || got.BlurHash != p.BlurHash {
		t.Errorf("fields: got %+v", got)
	}
	if !got.Original.Equal(p.Original) || !got.Derived.Equal(p.Derived) {
		t.Errorf("assets: got %v / %v", got.Original, got.Derived)
	}
	if len(got.CategoryIDs) != 0 || len(got.TagIDs) != 0 {
		t.Errorf("expected no links, got %v / %v", got.CategoryIDs, got.TagIDs)
	}
}

func TestCreatePage_DuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreatePage(ctx, makeTestPage("page-1", "happy-cat")); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if err := s.CreatePage(ctx, makeTestPage("page-2", "happy-cat")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetPage_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetPage(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPages_ByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCategory(ctx, makeTestCategory("cat-1", "animals")); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	for _, slug := range []string{"cat", "dog", "car"} {
		if err := s.CreatePage(ctx, makeTestPage("page-"+slug, slug)); err != nil {
			t.Fatalf("CreatePage: %v", err)
		}
	}
	for _, id := range []string{"page-cat", "page-dog"} {
		if err := s.AddPageCategories(ctx, id, []string{"cat-1"}); err != nil {
			t.Fatalf("AddPageCategories: %v", err)
		}
	}

	all, err := s.ListPages(ctx, "")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 pages, got %d", len(all))
	}

	filtered, err := s.ListPages(ctx, "cat-1")
	if err != nil {
		t.Fatalf("ListPages(cat-1): %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(filtered))
	}
	for _, p := range filtered {
		if len(p.CategoryIDs) != 1 || p.CategoryIDs[0] != "cat-1" {
			t.Errorf("page %s categories: got %v", p.ID, p.CategoryIDs)
		}
	}
}

func TestUpdatePage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := makeTestPage("page-1", "happy-cat")
	if err := s.CreatePage(ctx, p); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	p.Title = "Very Happy Cat"
	p.Difficulty = "hard"
	p.Derived.Key = "page-1/r2/happy-cat.opt.jpg"
	if err := s.UpdatePage(ctx, p, 1); err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}

	got, err := s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got.Title != "Very Happy Cat" || got.Difficulty != "hard" || got.Version != 2 {
		t.Errorf("after update: got %+v", got)
	}
	if got.Derived.Key != "page-1/r2/happy-cat.opt.jpg" {
		t.Errorf("Derived: got %v", got.Derived)
	}

	if err := s.UpdatePage(ctx, p, 1); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestDeletePage_CascadesLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCategory(ctx, makeTestCategory("cat-1", "animals")); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := s.CreateTags(ctx, []*domain.Tag{makeTestTag("tag-1", "cute")}); err != nil {
		t.Fatalf("CreateTags: %v", err)
	}
	if err := s.CreatePage(ctx, makeTestPage("page-1", "happy-cat")); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if err := s.ReplacePageLinks(ctx, "page-1", []string{"cat-1"}, []string{"tag-1"}); err != nil {
		t.Fatalf("ReplacePageLinks: %v", err)
	}

	if err := s.DeletePage(ctx, "page-1"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM page_tags").Scan(&n); err != nil {
		t.Fatalf("count page_tags: %v", err)
	}
	if n != 0 {
		t.Errorf("expected page_tags to cascade, got %d rows", n)
	}

	// The tag itself is now free to delete.
	if err := s.DeleteTag(ctx, "tag-1"); err != nil {
		t.Errorf("DeleteTag after page delete: %v", err)
	}
	if err := s.DeletePage(ctx, "page-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
