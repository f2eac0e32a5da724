package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/store"
)

func (s *Server) registerPublicationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPublications",
		Method:      http.MethodGet,
		Path:        "/api/v1/publications",
		Summary:     "List publications",
		Description: "Pages through the catalog. search matches titles and writer names.",
		Tags:        []string{"Publications"},
	}, s.handleListPublications)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPublication",
		Method:      http.MethodGet,
		Path:        "/api/v1/publications/{id}",
		Summary:     "Get publication",
		Tags:        []string{"Publications"},
	}, s.handleGetPublication)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createPublication",
		Method:        http.MethodPost,
		Path:          "/api/v1/publications",
		Summary:       "Create publication",
		Description:   "Writers and shelves are matched by name and created when missing",
		Tags:          []string{"Publications"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreatePublication)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePublication",
		Method:      http.MethodPut,
		Path:        "/api/v1/publications/{id}",
		Summary:     "Update publication",
		Description: "Replaces the publication's fields, writers and shelves",
		Tags:        []string{"Publications"},
		Security:    bearerAuth,
	}, s.handleUpdatePublication)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deletePublication",
		Method:        http.MethodDelete,
		Path:          "/api/v1/publications/{id}",
		Summary:       "Delete publication",
		Tags:          []string{"Publications"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeletePublication)
}

// === DTOs ===

// ListPublicationsInput contains filter and pagination parameters.
type ListPublicationsInput struct {
	Search string `query:"search" maxLength:"200" doc:"Substring of the title or a writer's name"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Items per page"`
	Cursor string `query:"cursor" doc:"Cursor from a previous page"`
}

// PublicationPageOutput wraps a page of publications for huma.
type PublicationPageOutput struct {
	Body *store.PaginatedResult[*domain.Publication]
}

// PublicationIDInput addresses one publication.
type PublicationIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Publication ID"`
}

// PublicationOutput wraps a publication for huma.
type PublicationOutput struct {
	Body *domain.Publication
}

// CreatePublicationInput wraps the create request for huma.
type CreatePublicationInput struct {
	Body service.PublicationRequest
}

// UpdatePublicationInput wraps the update request for huma.
type UpdatePublicationInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Publication ID"`
	Body service.PublicationRequest
}

// === Handlers ===

func (s *Server) handleListPublications(ctx context.Context, input *ListPublicationsInput) (*PublicationPageOutput, error) {
	page, err := s.services.Catalog.ListPublications(ctx, input.Search, store.PaginationParams{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return &PublicationPageOutput{Body: page}, nil
}

func (s *Server) handleGetPublication(ctx context.Context, input *PublicationIDInput) (*PublicationOutput, error) {
	p, err := s.services.Catalog.GetPublication(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PublicationOutput{Body: p}, nil
}

func (s *Server) handleCreatePublication(ctx context.Context, input *CreatePublicationInput) (*PublicationOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	p, err := s.services.Catalog.CreatePublication(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &PublicationOutput{Body: p}, nil
}

func (s *Server) handleUpdatePublication(ctx context.Context, input *UpdatePublicationInput) (*PublicationOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	p, err := s.services.Catalog.UpdatePublication(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &PublicationOutput{Body: p}, nil
}

func (s *Server) handleDeletePublication(ctx context.Context, input *PublicationIDInput) (*struct{}, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Catalog.DeletePublication(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
