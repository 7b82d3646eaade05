package domain

import "time"

// Difficulty levels for coloring pages.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ColoringPage is a printable page. Original is the uploaded file as-is;
// Derived is the transcoded, web-friendly copy.
type ColoringPage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Difficulty  string    `json:"difficulty"`
	Original    *AssetRef `json:"original,omitempty"`
	Derived     *AssetRef `json:"derived,omitempty"`
	BlurHash    string    `json:"blur_hash,omitempty"`
	CategoryIDs []string  `json:"category_ids"`
	TagIDs      []string  `json:"tag_ids"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (p *ColoringPage) Touch() {
	p.UpdatedAt = time.Now()
}

// Assets returns the non-nil asset references of the page.
func (p *ColoringPage) Assets() []*AssetRef {
	return compactRefs(p.Original, p.Derived)
}
