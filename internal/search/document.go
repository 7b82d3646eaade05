// Package search provides full-text catalog search using Bleve.
// Coloring pages and categories share one index and are told apart by type.
package search

import (
	"github.com/colorbook/colorbook-server/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypePage     DocType = "page"
	DocTypeCategory DocType = "category"
)

// SearchDocument is the unified document structure for the Bleve index.
// Tag names are denormalized into page documents.
type SearchDocument struct {
	ID          string   `json:"id"`
	Type        DocType  `json:"type"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// ImagePath is where the derived image is served from.
	ImagePath string `json:"image_path,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names
// matching the index mapping.
func (d *SearchDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"type":       string(d.Type),
		"name":       d.Name,
		"slug":       d.Slug,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Difficulty != "" {
		m["difficulty"] = d.Difficulty
	}
	if len(d.CategoryIDs) > 0 {
		m["category_ids"] = d.CategoryIDs
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.ImagePath != "" {
		m["image_path"] = d.ImagePath
	}

	return m
}

// PageToSearchDocument converts a coloring page. tagNames are the names of
// the page's tags.
func PageToSearchDocument(p *domain.ColoringPage, tagNames []string) *SearchDocument {
	return &SearchDocument{
		ID:          p.ID,
		Type:        DocTypePage,
		Name:        p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		CategoryIDs: p.CategoryIDs,
		Tags:        tagNames,
		ImagePath:   p.Derived.URLPath(),
		CreatedAt:   p.CreatedAt.UnixMilli(),
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
	}
}

// CategoryToSearchDocument converts a category.
func CategoryToSearchDocument(c *domain.Category) *SearchDocument {
	return &SearchDocument{
		ID:          c.ID,
		Type:        DocTypeCategory,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ImagePath:   c.Thumbnail.URLPath(),
		CreatedAt:   c.CreatedAt.UnixMilli(),
		UpdatedAt:   c.UpdatedAt.UnixMilli(),
	}
}
