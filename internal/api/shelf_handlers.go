package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/domain"
)

func (s *Server) registerShelfRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listShelves",
		Method:      http.MethodGet,
		Path:        "/api/v1/shelves",
		Summary:     "List shelves",
		Tags:        []string{"Shelves"},
	}, s.handleListShelves)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createShelf",
		Method:        http.MethodPost,
		Path:          "/api/v1/shelves",
		Summary:       "Create shelf",
		Description:   "Returns the existing shelf when one with the same name exists",
		Tags:          []string{"Shelves"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateShelf)
}

// ShelfListOutput wraps the shelves for huma.
type ShelfListOutput struct {
	Body []*domain.LibraryShelf
}

// CreateShelfInput wraps the create request for huma.
type CreateShelfInput struct {
	Body struct {
		Name string `json:"shelf_name,omitempty" maxLength:"100" doc:"Shelf name"`
	}
}

// ShelfOutput wraps a shelf for huma.
type ShelfOutput struct {
	Body *domain.LibraryShelf
}

func (s *Server) handleListShelves(ctx context.Context, _ *struct{}) (*ShelfListOutput, error) {
	shelves, err := s.services.Catalog.ListShelves(ctx)
	if err != nil {
		return nil, err
	}
	return &ShelfListOutput{Body: shelves}, nil
}

func (s *Server) handleCreateShelf(ctx context.Context, input *CreateShelfInput) (*ShelfOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	shelf, err := s.services.Catalog.CreateShelf(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &ShelfOutput{Body: shelf}, nil
}
