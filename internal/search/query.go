package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string   // User's search query
	Types []string // Document types to include (empty = all)

	// Filters
	CategoryID string   // Pages in this category
	Difficulty string   // Pages of this difficulty
	Tags       []string // Pages carrying any of these tag names

	// Pagination
	Limit  int
	Offset int

	// Sorting: "relevance", "name", "recent"
	SortBy string

	IncludeFacets bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		IncludeFacets: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	Difficulty string            `json:"difficulty,omitempty"`
	ImagePath  string            `json:"image_path,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types        []FacetCount `json:"types,omitempty"`
	Difficulties []FacetCount `json:"difficulties,omitempty"`
	Tags         []FacetCount `json:"tags,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		for _, field := range []string{"type", "difficulty", "tags"} {
			searchRequest.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}

	if params.Query != "" {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
	}

	searchRequest.Fields = []string{"id", "type", "name", "slug", "difficulty", "image_path"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if t, ok := hit.Fields["type"].(string); ok {
			searchHit.Type = DocType(t)
		}
		if n, ok := hit.Fields["name"].(string); ok {
			searchHit.Name = n
		}
		if sl, ok := hit.Fields["slug"].(string); ok {
			searchHit.Slug = sl
		}
		if d, ok := hit.Fields["difficulty"].(string); ok {
			searchHit.Difficulty = d
		}
		if p, ok := hit.Fields["image_path"].(string); ok {
			searchHit.ImagePath = p
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = SearchFacets{
			Types:        facetCounts(searchResult, "type"),
			Difficulties: facetCounts(searchResult, "difficulty"),
			Tags:         facetCounts(searchResult, "tags"),
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		textQueries = append(textQueries, descMatch)

		// Tags are stored canonical lowercase.
		tagMatch := bleve.NewTermQuery(strings.ToLower(strings.TrimSpace(params.Query)))
		tagMatch.SetField("tags")
		tagMatch.SetBoost(2.0)
		textQueries = append(textQueries, tagMatch)

		// Typo tolerance on name
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if q := anyTerm("type", params.Types); q != nil {
		queries = append(queries, q)
	}
	if params.CategoryID != "" {
		queries = append(queries, anyTerm("category_ids", []string{params.CategoryID}))
	}
	if params.Difficulty != "" {
		queries = append(queries, anyTerm("difficulty", []string{params.Difficulty}))
	}
	if q := anyTerm("tags", params.Tags); q != nil {
		queries = append(queries, q)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// anyTerm matches documents whose keyword field holds any of values.
func anyTerm(field string, values []string) query.Query {
	if len(values) == 0 {
		return nil
	}
	terms := make([]query.Query, len(values))
	for i, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms[i] = tq
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "name", "title":
		req.SortBy([]string{"slug", "_id"})
	case "recent":
		req.SortBy([]string{"-created_at", "_id"})
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

func facetCounts(result *bleve.SearchResult, field string) []FacetCount {
	facet, ok := result.Facets[field]
	if !ok || facet.Terms == nil {
		return nil
	}
	var counts []FacetCount
	for _, term := range facet.Terms.Terms() {
		counts = append(counts, FacetCount{Value: term.Term, Count: term.Count})
	}
	return counts
}
