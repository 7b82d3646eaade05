package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/colorbook/colorbook-server/internal/normalize"
	"github.com/colorbook/colorbook-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	if s.services.Search == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search catalog",
		Description: "Full-text search across coloring pages and categories",
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the search index and rebuilds it from the catalog",
		Tags:        []string{"Search"},
	}, s.handleReindex)
}

// === DTOs ===

// SearchInput contains parameters for searching the catalog.
type SearchInput struct {
	Query      string `query:"q" maxLength:"200" doc:"Search query. Omit to browse with filters only."`
	Types      string `query:"type" maxLength:"50" doc:"Comma-separated types (page,category). Omit for all."`
	CategoryID string `query:"category" doc:"Only pages in this category"`
	Difficulty string `query:"difficulty" enum:"easy,medium,hard" doc:"Only pages of this difficulty"`
	Tags       string `query:"tags" maxLength:"200" doc:"Comma-separated tag names"`
	Limit      int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset     int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort       string `query:"sort" enum:"relevance,name,recent" doc:"Sort order"`
	Facets     bool   `query:"facets" doc:"Include facet counts"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// ReindexResponse reports a rebuild.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Documents written to the new index"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.CategoryID = input.CategoryID
	params.Difficulty = input.Difficulty
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}

	for _, t := range normalize.SplitList(input.Types) {
		switch search.DocType(t) {
		case search.DocTypePage, search.DocTypeCategory:
			params.Types = append(params.Types, t)
		}
	}
	for _, t := range normalize.SplitList(input.Tags) {
		if name := normalize.TagName(t); name != "" {
			params.Tags = append(params.Tags, name)
		}
	}

	s.logger.Debug("search request received",
		"query", params.Query,
		"types", params.Types,
		"limit", params.Limit,
	)

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	n, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}
