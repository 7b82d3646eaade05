package domain

import "time"

// Tag is a free-text label shared by all coloring pages.
// Name is stored in canonical lowercase form and is unique.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}
