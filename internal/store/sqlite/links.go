package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var timeNow = time.Now

// AddPageCategories links a page to each category.
// Unknown page or category ids yield store.ErrInvalidInput.
func (s *Store) AddPageCategories(ctx context.Context, pageID string, categoryIDs []string) error {
	return insertLinks(ctx, s.db, "page_categories", "category_id", pageID, categoryIDs)
}

// AddPageTags links a page to each tag.
func (s *Store) AddPageTags(ctx context.Context, pageID string, tagIDs []string) error {
	return insertLinks(ctx, s.db, "page_tags", "tag_id", pageID, tagIDs)
}

// DeletePageLinks removes every category and tag link of a page.
func (s *Store) DeletePageLinks(ctx context.Context, pageID string) error {
	return deleteLinks(ctx, s.db, pageID)
}

// ReplacePageLinks swaps a page's link sets in a single transaction.
// On any failure the previous links remain.
func (s *Store) ReplacePageLinks(ctx context.Context, pageID string, categoryIDs, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := deleteLinks(ctx, tx, pageID); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, "page_categories", "category_id", pageID, categoryIDs); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, "page_tags", "tag_id", pageID, tagIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit links: %w", err)
	}
	return nil
}

// GetPageCategoryIDs returns the category ids linked to a page, sorted.
func (s *Store) GetPageCategoryIDs(ctx context.Context, pageID string) ([]string, error) {
	return s.linkedIDs(ctx, `SELECT category_id FROM page_categories WHERE page_id = ? ORDER BY category_id`, pageID)
}

// GetPageTagIDs returns the tag ids linked to a page, sorted.
func (s *Store) GetPageTagIDs(ctx context.Context, pageID string) ([]string, error) {
	return s.linkedIDs(ctx, `SELECT tag_id FROM page_tags WHERE page_id = ? ORDER BY tag_id`, pageID)
}

func (s *Store) linkedIDs(ctx context.Context, query, pageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertLinks(ctx context.Context, db execer, table, column, pageID string, ids []string) error {
	now := formatTime(timeNow())
	for _, id := range ids {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (page_id, `+column+`, created_at) VALUES (?, ?, ?)`,
			pageID, id, now)
		if err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

func deleteLinks(ctx context.Context, db execer, pageID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM page_categories WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("delete page categories: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM page_tags WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("delete page tags: %w", err)
	}
	return nil
}
