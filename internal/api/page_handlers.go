package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/service"
)

func (s *Server) registerPageRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPages",
		Method:      http.MethodGet,
		Path:        "/api/v1/pages",
		Summary:     "List coloring pages",
		Description: "Returns coloring pages ordered by title, optionally within one category",
		Tags:        []string{"Pages"},
	}, s.handleListPages)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPage",
		Method:      http.MethodGet,
		Path:        "/api/v1/pages/{id}",
		Summary:     "Get coloring page",
		Description: "Returns a coloring page with its category and tag links",
		Tags:        []string{"Pages"},
	}, s.handleGetPage)

	w := s.writes()
	w.Post("/api/v1/pages", s.handleCreatePage)
	w.Put("/api/v1/pages/{id}", s.handleUpdatePage)
	w.Delete("/api/v1/pages/{id}", s.handleDeletePage)
}

// === DTOs ===

// PageResponse contains coloring page data in API responses.
type PageResponse struct {
	ID          string    `json:"id" doc:"Page ID"`
	Title       string    `json:"title" doc:"Title"`
	Slug        string    `json:"slug" doc:"URL-safe slug"`
	Description string    `json:"description,omitempty" doc:"Description"`
	Difficulty  string    `json:"difficulty" doc:"easy, medium or hard"`
	ImageURL    string    `json:"image_url,omitempty" doc:"Web-optimized image path"`
	OriginalURL string    `json:"original_url,omitempty" doc:"Uploaded original path"`
	BlurHash    string    `json:"blur_hash,omitempty" doc:"BlurHash placeholder"`
	CategoryIDs []string  `json:"category_ids" doc:"Linked category IDs"`
	TagIDs      []string  `json:"tag_ids" doc:"Linked tag IDs"`
	Version     int       `json:"version" doc:"Version for optimistic concurrency"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// ListPagesInput contains parameters for listing pages.
type ListPagesInput struct {
	CategoryID string `query:"category" doc:"Only pages in this category"`
}

// ListPagesOutput wraps the page list for Huma.
type ListPagesOutput struct {
	Body struct {
		Pages []PageResponse `json:"pages" doc:"Coloring pages"`
	}
}

// GetPageInput contains parameters for getting a page.
type GetPageInput struct {
	ID string `path:"id" doc:"Page ID"`
}

// PageOutput wraps a page for Huma.
type PageOutput struct {
	Body PageResponse
}

func toPageResponse(p *domain.ColoringPage) PageResponse {
	return PageResponse{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		ImageURL:    p.Derived.URLPath(),
		OriginalURL: p.Original.URLPath(),
		BlurHash:    p.BlurHash,
		CategoryIDs: nonNil(p.CategoryIDs),
		TagIDs:      nonNil(p.TagIDs),
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// === Handlers ===

func (s *Server) handleListPages(ctx context.Context, input *ListPagesInput) (*ListPagesOutput, error) {
	pages, err := s.services.Page.List(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	out := &ListPagesOutput{}
	out.Body.Pages = make([]PageResponse, len(pages))
	for i, p := range pages {
		out.Body.Pages[i] = toPageResponse(p)
	}
	return out, nil
}

func (s *Server) handleGetPage(ctx context.Context, input *GetPageInput) (*PageOutput, error) {
	p, err := s.services.Page.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PageOutput{Body: toPageResponse(p)}, nil
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	in, err := s.readPageInput(w, r)
	if err != nil {
		writeResult(w, http.StatusCreated, "", err, s.logger)
		return
	}

	var id string
	p, err := s.services.Page.Create(r.Context(), in)
	if p != nil {
		id = p.ID
	}
	writeResult(w, http.StatusCreated, id, err, s.logger)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in, err := s.readPageInput(w, r)
	if err != nil {
		writeResult(w, http.StatusOK, id, err, s.logger)
		return
	}

	_, err = s.services.Page.Update(r.Context(), id, in)
	writeResult(w, http.StatusOK, id, err, s.logger)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deletedResult(w, id, s.services.Page.Delete(r.Context(), id), s.logger)
}

func (s *Server) readPageInput(w http.ResponseWriter, r *http.Request) (service.PageInput, error) {
	form, err := parseMultipart(w, r, s.config.MaxUploadBytes)
	if err != nil {
		return service.PageInput{}, err
	}

	in := service.PageInput{
		Title:       form.value("title"),
		Description: form.value("description"),
		Difficulty:  form.value("difficulty"),
		CategoryIDs: form.list("category_ids"),
		Tags:        form.list("tags"),
	}
	if in.Version, err = form.version(); err != nil {
		return in, err
	}
	if in.Image, err = form.file("image"); err != nil {
		return in, err
	}
	return in, nil
}
