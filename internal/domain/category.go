package domain

import "time"

// Category groups coloring pages. Its thumbnail and hero images are stored
// only in the derived encoding.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Thumbnail   *AssetRef `json:"thumbnail,omitempty"`
	Hero        *AssetRef `json:"hero,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (c *Category) Touch() {
	c.UpdatedAt = time.Now()
}

// Assets returns the non-nil asset references of the category.
func (c *Category) Assets() []*AssetRef {
	return compactRefs(c.Thumbnail, c.Hero)
}

func compactRefs(refs ...*AssetRef) []*AssetRef {
	out := make([]*AssetRef, 0, len(refs))
	for _, r := range refs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
