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

func (s *Server) registerCategoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns every category ordered by name",
		Tags:        []string{"Categories"},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCategory",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Get category",
		Description: "Returns a category by ID",
		Tags:        []string{"Categories"},
	}, s.handleGetCategory)

	// Multipart writes bypass huma.
	w := s.writes()
	w.Post("/api/v1/categories", s.handleCreateCategory)
	w.Put("/api/v1/categories/{id}", s.handleUpdateCategory)
	w.Delete("/api/v1/categories/{id}", s.handleDeleteCategory)
}

// === DTOs ===

// CategoryResponse contains category data in API responses.
type CategoryResponse struct {
	ID           string    `json:"id" doc:"Category ID"`
	Name         string    `json:"name" doc:"Display name"`
	Slug         string    `json:"slug" doc:"URL-safe slug"`
	Description  string    `json:"description,omitempty" doc:"Description"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty" doc:"Thumbnail image path"`
	HeroURL      string    `json:"hero_url,omitempty" doc:"Hero image path"`
	Version      int       `json:"version" doc:"Version for optimistic concurrency"`
	CreatedAt    time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt    time.Time `json:"updated_at" doc:"Last update time"`
}

// ListCategoriesOutput wraps the category list for Huma.
type ListCategoriesOutput struct {
	Body struct {
		Categories []CategoryResponse `json:"categories" doc:"Categories"`
	}
}

// GetCategoryInput contains parameters for getting a category.
type GetCategoryInput struct {
	ID string `path:"id" doc:"Category ID"`
}

// CategoryOutput wraps a category for Huma.
type CategoryOutput struct {
	Body CategoryResponse
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		ThumbnailURL: c.Thumbnail.URLPath(),
		HeroURL:      c.Hero.URLPath(),
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// === Handlers ===

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*ListCategoriesOutput, error) {
	categories, err := s.services.Category.List(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListCategoriesOutput{}
	out.Body.Categories = make([]CategoryResponse, len(categories))
	for i, c := range categories {
		out.Body.Categories[i] = toCategoryResponse(c)
	}
	return out, nil
}

func (s *Server) handleGetCategory(ctx context.Context, input *GetCategoryInput) (*CategoryOutput, error) {
	c, err := s.services.Category.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: toCategoryResponse(c)}, nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	in, err := s.readCategoryInput(w, r)
	if err != nil {
		writeResult(w, http.StatusCreated, "", err, s.logger)
		return
	}

	var id string
	c, err := s.services.Category.Create(r.Context(), in)
	if c != nil {
		id = c.ID
	}
	writeResult(w, http.StatusCreated, id, err, s.logger)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in, err := s.readCategoryInput(w, r)
	if err != nil {
		writeResult(w, http.StatusOK, id, err, s.logger)
		return
	}

	_, err = s.services.Category.Update(r.Context(), id, in)
	writeResult(w, http.StatusOK, id, err, s.logger)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deletedResult(w, id, s.services.Category.Delete(r.Context(), id), s.logger)
}

func (s *Server) readCategoryInput(w http.ResponseWriter, r *http.Request) (service.CategoryInput, error) {
	form, err := parseMultipart(w, r, s.config.MaxUploadBytes)
	if err != nil {
		return service.CategoryInput{}, err
	}

	in := service.CategoryInput{
		Name:        form.value("name"),
		Description: form.value("description"),
	}
	if in.Version, err = form.version(); err != nil {
		return in, err
	}
	if in.Thumbnail, err = form.file("thumbnail"); err != nil {
		return in, err
	}
	if in.Hero, err = form.file("hero"); err != nil {
		return in, err
	}
	return in, nil
}
