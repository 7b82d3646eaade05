package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/store"
)

const tagSelect = `
	SELECT t.id, t.name, t.created_at, t.updated_at,
		(SELECT COUNT(*) FROM page_tags pt WHERE pt.tag_id = t.id)
	FROM tags t`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t                    domain.Tag
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&t.ID, &t.Name, &createdAt, &updatedAt, &t.PageCount); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) queryTags(ctx context.Context, query string, args ...any) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// GetTagsByNames returns the tags whose names match, ignoring case.
// Names without a tag are simply absent from the result.
func (s *Store) GetTagsByNames(ctx context.Context, names []string) ([]*domain.Tag, error) {
	if len(names) == 0 {
		return []*domain.Tag{}, nil
	}
	return s.queryTags(ctx,
		tagSelect+` WHERE t.name IN (`+placeholders(len(names))+`) ORDER BY t.name ASC`,
		stringArgs(names)...)
}

// CreateTags inserts all tags in one transaction.
// A duplicate name anywhere in the batch rolls the batch back and returns
// store.ErrAlreadyExists.
func (s *Store) CreateTags(ctx context.Context, tags []*domain.Tag) error {
	if len(tags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tags (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, t.ID, t.Name, formatTime(t.CreatedAt), formatTime(t.UpdatedAt)); err != nil {
			return mapWriteError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// GetTag retrieves a tag by ID.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, id string) (*domain.Tag, error) {
	t, err := scanTag(s.db.QueryRowContext(ctx, tagSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags returns all tags ordered by name, with page counts.
func (s *Store) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.queryTags(ctx, tagSelect+` ORDER BY t.name ASC`)
}

// RenameTag changes a tag's name.
// Returns store.ErrNotFound or store.ErrAlreadyExists when the name is taken.
func (s *Store) RenameTag(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, updated_at = ? WHERE id = ?`,
		name, formatTime(timeNow()), id)
	if err != nil {
		return mapWriteError(err)
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

// DeleteTag removes a tag.
// Returns store.ErrInUse while any page still links to it.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return store.ErrInUse.WithMessage("tag is linked to coloring pages").WithCause(err)
	}
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
