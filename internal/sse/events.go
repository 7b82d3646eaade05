// Package sse streams catalog change notifications to connected clients as
// Server-Sent Events, so caches and admin consoles can refresh after a write.
package sse

import (
	"time"

	"github.com/colorbook/colorbook-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventCategoryChanged is sent after a category create or update commits.
	EventCategoryChanged EventType = "category.changed"
	// EventCategoryDeleted is sent after a category delete commits.
	EventCategoryDeleted EventType = "category.deleted"

	// EventPageChanged is sent after a coloring page create or update commits.
	EventPageChanged EventType = "page.changed"
	// EventPageDeleted is sent after a coloring page delete commits.
	EventPageDeleted EventType = "page.deleted"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// CatalogEventData names the changed entity and the API paths whose cached
// responses are now stale.
type CatalogEventData struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug,omitempty"`
	Version int      `json:"version,omitempty"`
	Paths   []string `json:"paths"`
}

// HeartbeatEventData is the payload of a keepalive.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewCategoryChangedEvent creates a category.changed event.
func NewCategoryChangedEvent(c *domain.Category) Event {
	return newEvent(EventCategoryChanged, CatalogEventData{
		ID:      c.ID,
		Slug:    c.Slug,
		Version: c.Version,
		Paths:   categoryPaths(c.ID),
	})
}

// NewCategoryDeletedEvent creates a category.deleted event.
func NewCategoryDeletedEvent(id string) Event {
	return newEvent(EventCategoryDeleted, CatalogEventData{ID: id, Paths: categoryPaths(id)})
}

// NewPageChangedEvent creates a page.changed event. Listings of every linked
// category are stale too.
func NewPageChangedEvent(p *domain.ColoringPage) Event {
	paths := pagePaths(p.ID)
	for _, catID := range p.CategoryIDs {
		paths = append(paths, "/api/v1/pages?category="+catID)
	}
	return newEvent(EventPageChanged, CatalogEventData{
		ID:      p.ID,
		Slug:    p.Slug,
		Version: p.Version,
		Paths:   paths,
	})
}

// NewPageDeletedEvent creates a page.deleted event.
func NewPageDeletedEvent(id string) Event {
	return newEvent(EventPageDeleted, CatalogEventData{ID: id, Paths: pagePaths(id)})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

func categoryPaths(id string) []string {
	return []string{"/api/v1/categories", "/api/v1/categories/" + id}
}

// Tag page counts change with page links.
func pagePaths(id string) []string {
	return []string{"/api/v1/pages", "/api/v1/pages/" + id, "/api/v1/tags"}
}
