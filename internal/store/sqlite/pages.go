package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/store"
)

// pageColumns must match the scan order in scanPage.
const pageColumns = `id, title, slug, description, difficulty,
	original_bucket, original_key, derived_bucket, derived_key,
	blur_hash, version, created_at, updated_at`

func scanPage(scanner interface{ Scan(dest ...any) error }) (*domain.ColoringPage, error) {
	var (
		p                         domain.ColoringPage
		origBucket, origKey       sql.NullString
		derivedBucket, derivedKey sql.NullString
		createdAt, updatedAt      string
	)

	err := scanner.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Description,
		&p.Difficulty,
		&origBucket,
		&origKey,
		&derivedBucket,
		&derivedKey,
		&p.BlurHash,
		&p.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Original = scanAssetRef(origBucket, origKey)
	p.Derived = scanAssetRef(derivedBucket, derivedKey)

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePage inserts the page row. Link sets are written separately.
// Returns store.ErrAlreadyExists on duplicate id or slug.
func (s *Store) CreatePage(ctx context.Context, p *domain.ColoringPage) error {
	if p.Version == 0 {
		p.Version = 1
	}
	origBucket, origKey := assetArgs(p.Original)
	derivedBucket, derivedKey := assetArgs(p.Derived)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coloring_pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Title,
		p.Slug,
		p.Description,
		p.Difficulty,
		origBucket,
		origKey,
		derivedBucket,
		derivedKey,
		p.BlurHash,
		p.Version,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	return mapWriteError(err)
}

// GetPage retrieves a page with its category and tag ids.
// Returns store.ErrNotFound if the page does not exist.
func (s *Store) GetPage(ctx context.Context, id string) (*domain.ColoringPage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM coloring_pages WHERE id = ?`, id)

	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadPageLinks(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPages returns pages ordered by title. A non-empty categoryID restricts
// the result to pages linked to that category.
func (s *Store) ListPages(ctx context.Context, categoryID string) ([]*domain.ColoringPage, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if categoryID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM coloring_pages ORDER BY title ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+pageColumns+` FROM coloring_pages
			WHERE id IN (SELECT page_id FROM page_categories WHERE category_id = ?)
			ORDER BY title ASC`, categoryID)
	}
	if err != nil {
		return nil, err
	}

	pages := []*domain.ColoringPage{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, p := range pages {
		if err := s.loadPageLinks(ctx, p); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

// UpdatePage overwrites the page row and increments its version. Links are untouched.
func (s *Store) UpdatePage(ctx context.Context, p *domain.ColoringPage, expectedVersion int) error {
	origBucket, origKey := assetArgs(p.Original)
	derivedBucket, derivedKey := assetArgs(p.Derived)

	query := `
		UPDATE coloring_pages SET
			title = ?, slug = ?, description = ?, difficulty = ?,
			original_bucket = ?, original_key = ?,
			derived_bucket = ?, derived_key = ?,
			blur_hash = ?, version = version + 1, updated_at = ?
		WHERE id = ?`
	args := []any{
		p.Title, p.Slug, p.Description, p.Difficulty,
		origBucket, origKey,
		derivedBucket, derivedKey,
		p.BlurHash, formatTime(p.UpdatedAt), p.ID,
	}
	if expectedVersion > 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, "coloring_pages", p.ID)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM coloring_pages WHERE id = ?`, p.ID).Scan(&version); err == nil {
		p.Version = version
	}
	return nil
}

// DeletePage removes a page. Its links cascade.
// Returns store.ErrNotFound if the page does not exist.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM coloring_pages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) loadPageLinks(ctx context.Context, p *domain.ColoringPage) error {
	categoryIDs, err := s.GetPageCategoryIDs(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load page categories: %w", err)
	}
	tagIDs, err := s.GetPageTagIDs(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load page tags: %w", err)
	}
	p.CategoryIDs = categoryIDs
	p.TagIDs = tagIDs
	return nil
}
