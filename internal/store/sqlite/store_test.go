package sqlite

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestCategory(id, slug string) *domain.Category {
	now := time.Now()
	return &domain.Category{
		ID:          id,
		Name:        "Category " + slug,
		Slug:        slug,
		Description: "test category",
		Thumbnail:   &domain.AssetRef{Bucket: "categories", Key: id + "/r1/" + slug + "-thumb.opt.jpg"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func makeTestPage(id, slug string) *domain.ColoringPage {
	now := time.Now()
	return &domain.ColoringPage{
		ID:         id,
		Title:      "Page " + slug,
		Slug:       slug,
		Difficulty: domain.DifficultyEasy,
		Original:   &domain.AssetRef{Bucket: "coloring-pages", Key: id + "/r1/" + slug + ".png"},
		Derived:    &domain.AssetRef{Bucket: "coloring-pages", Key: id + "/r1/" + slug + ".opt.jpg"},
		BlurHash:   "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func makeTestTag(id, name string) *domain.Tag {
	now := time.Now()
	return &domain.Tag{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{"categories", "coloring_pages", "tags", "page_categories", "page_tags"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	s2.Close()
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d): got %q, want %q", n, got, want)
		}
	}
}

func TestMapWriteError(t *testing.T) {
	if mapWriteError(nil) != nil {
		t.Error("nil should map to nil")
	}
	if err := mapWriteError(errors.New("UNIQUE constraint failed: tags.name")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("unique: got %v", err)
	}
	if err := mapWriteError(errors.New("FOREIGN KEY constraint failed")); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("fk: got %v", err)
	}
	other := errors.New("disk I/O error")
	if err := mapWriteError(other); err != other {
		t.Errorf("other: got %v", err)
	}
}
