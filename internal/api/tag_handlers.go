package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/colorbook/colorbook-server/internal/domain"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns all tags with their page counts",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "renameTag",
		Method:        http.MethodPatch,
		Path:          "/api/v1/tags/{id}",
		Summary:       "Rename tag",
		Description:   "Renames a tag. The new name is normalized and must not collide with another tag",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusOK,
	}, s.handleRenameTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Deletes a tag that no coloring page uses",
		Tags:        []string{"Tags"},
	}, s.handleDeleteTag)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID        string    `json:"id" doc:"Tag ID"`
	Name      string    `json:"name" doc:"Normalized tag name"`
	PageCount int       `json:"page_count" doc:"Number of pages carrying this tag"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body struct {
		Tags []TagResponse `json:"tags" doc:"List of tags"`
	}
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// GetTagInput contains parameters for getting a tag.
type GetTagInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// RenameTagInput wraps the rename request for Huma.
type RenameTagInput struct {
	ID   string `path:"id" doc:"Tag ID"`
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"50" doc:"New tag name"`
	}
}

// DeleteTagInput contains parameters for deleting a tag.
type DeleteTagInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Response message"`
}

// MessageOutput wraps a message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func toTagResponse(t *domain.Tag) TagResponse {
	return TagResponse{
		ID:        t.ID,
		Name:      t.Name,
		PageCount: t.PageCount,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	tags, err := s.services.Tag.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListTagsOutput{}
	out.Body.Tags = make([]TagResponse, len(tags))
	for i, t := range tags {
		out.Body.Tags[i] = toTagResponse(t)
	}
	return out, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *GetTagInput) (*TagOutput, error) {
	t, err := s.services.Tag.GetTag(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagResponse(t)}, nil
}

func (s *Server) handleRenameTag(ctx context.Context, input *RenameTagInput) (*TagOutput, error) {
	t, err := s.services.Tag.RenameTag(ctx, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagResponse(t)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *DeleteTagInput) (*MessageOutput, error) {
	if err := s.services.Tag.DeleteTag(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Tag deleted"}}, nil
}
