package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/store"
)

// categoryColumns must match the scan order in scanCategory.
const categoryColumns = `id, name, slug, description, thumbnail_bucket, thumbnail_key,
	hero_bucket, hero_key, version, created_at, updated_at`

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var (
		c                     domain.Category
		thumbBucket, thumbKey sql.NullString
		heroBucket, heroKey   sql.NullString
		createdAt, updatedAt  string
	)

	err := scanner.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&thumbBucket,
		&thumbKey,
		&heroBucket,
		&heroKey,
		&c.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Thumbnail = scanAssetRef(thumbBucket, thumbKey)
	c.Hero = scanAssetRef(heroBucket, heroKey)

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCategory inserts a new category.
// Returns store.ErrAlreadyExists on duplicate id or slug.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.Version == 0 {
		c.Version = 1
	}
	thumbBucket, thumbKey := assetArgs(c.Thumbnail)
	heroBucket, heroKey := assetArgs(c.Hero)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Name,
		c.Slug,
		c.Description,
		thumbBucket,
		thumbKey,
		heroBucket,
		heroKey,
		c.Version,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	return mapWriteError(err)
}

// GetCategory retrieves a category by ID.
// Returns store.ErrNotFound if the category does not exist.
func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory overwrites the category row and increments its version.
// Returns store.ErrNotFound for a missing row and store.ErrVersionConflict when
// expectedVersion is set and stale.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category, expectedVersion int) error {
	thumbBucket, thumbKey := assetArgs(c.Thumbnail)
	heroBucket, heroKey := assetArgs(c.Hero)

	query := `
		UPDATE categories SET
			name = ?, slug = ?, description = ?,
			thumbnail_bucket = ?, thumbnail_key = ?,
			hero_bucket = ?, hero_key = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?`
	args := []any{
		c.Name, c.Slug, c.Description,
		thumbBucket, thumbKey,
		heroBucket, heroKey,
		formatTime(c.UpdatedAt), c.ID,
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
		return s.missOrConflict(ctx, "categories", c.ID)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM categories WHERE id = ?`, c.ID).Scan(&version); err == nil {
		c.Version = version
	}
	return nil
}

// DeleteCategory removes a category. Page links cascade.
// Returns store.ErrNotFound if the category does not exist.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
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

// MissingCategoryIDs returns the subset of ids with no category row.
func (s *Store) MissingCategoryIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM categories WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// missOrConflict distinguishes a missing row from a stale version after an
// UPDATE matched nothing.
func (s *Store) missOrConflict(ctx context.Context, table, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrVersionConflict
}

func scanAssetRef(bucket, key sql.NullString) *domain.AssetRef {
	if !key.Valid || key.String == "" {
		return nil
	}
	return &domain.AssetRef{Bucket: bucket.String, Key: key.String}
}

func assetArgs(ref *domain.AssetRef) (sql.NullString, sql.NullString) {
	if ref == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return nullString(ref.Bucket), nullString(ref.Key)
}
