package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search catalog",
		Description: "Full-text search across publications and writers",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// SearchInput contains parameters for searching the catalog.
type SearchInput struct {
	Query     string  `query:"q" maxLength:"200" doc:"Search query. Empty matches everything."`
	Types     string  `query:"types" maxLength:"100" doc:"Comma-separated types (publication,writer). Omit for all."`
	Language  string  `query:"language" maxLength:"8" doc:"ISO 639-1 language code"`
	Shelf     string  `query:"shelf" maxLength:"100" doc:"Shelf name"`
	MinRating float64 `query:"min_rating" minimum:"0" maximum:"5" doc:"Minimum average rating"`
	Limit     int     `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Results per page"`
	Offset    int     `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort      string  `query:"sort" enum:"relevance,title,rating,recent" default:"relevance" doc:"Sort order"`
	Facets    bool    `query:"facets" doc:"Include facet counts"`
	Highlight bool    `query:"highlight" doc:"Include highlighted fragments"`
}

// SearchOutput wraps the search result for huma.
type SearchOutput struct {
	Body *search.Result
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.Params{
		Query:     strings.TrimSpace(input.Query),
		Language:  strings.ToLower(strings.TrimSpace(input.Language)),
		Shelf:     strings.TrimSpace(input.Shelf),
		MinRating: input.MinRating,
		Limit:     input.Limit,
		Offset:    input.Offset,
		Sort:      input.Sort,
		Facets:    input.Facets,
		Highlight: input.Highlight,
	}
	for t := range strings.SplitSeq(input.Types, ",") {
		switch search.DocType(strings.TrimSpace(t)) {
		case search.DocTypePublication:
			params.Types = append(params.Types, search.DocTypePublication)
		case search.DocTypeWriter:
			params.Types = append(params.Types, search.DocTypeWriter)
		}
	}

	res, err := s.services.Catalog.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: res}, nil
}
