package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/store"
)

func (s *Server) registerWriterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listWriters",
		Method:      http.MethodGet,
		Path:        "/api/v1/writers",
		Summary:     "List writers",
		Tags:        []string{"Writers"},
	}, s.handleListWriters)

	huma.Register(s.api, huma.Operation{
		OperationID: "getWriter",
		Method:      http.MethodGet,
		Path:        "/api/v1/writers/{id}",
		Summary:     "Get writer",
		Tags:        []string{"Writers"},
	}, s.handleGetWriter)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createWriter",
		Method:        http.MethodPost,
		Path:          "/api/v1/writers",
		Summary:       "Create writer",
		Tags:          []string{"Writers"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateWriter)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateWriter",
		Method:      http.MethodPut,
		Path:        "/api/v1/writers/{id}",
		Summary:     "Update writer",
		Tags:        []string{"Writers"},
		Security:    bearerAuth,
	}, s.handleUpdateWriter)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteWriter",
		Method:        http.MethodDelete,
		Path:          "/api/v1/writers/{id}",
		Summary:       "Delete writer",
		Tags:          []string{"Writers"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteWriter)
}

// ListWritersInput contains pagination parameters.
type ListWritersInput struct {
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Items per page"`
	Cursor string `query:"cursor" doc:"Cursor from a previous page"`
}

// WriterPageOutput wraps a page of writers for huma.
type WriterPageOutput struct {
	Body *store.PaginatedResult[*domain.Writer]
}

// WriterIDInput addresses one writer.
type WriterIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Writer ID"`
}

// WriterOutput wraps a writer for huma.
type WriterOutput struct {
	Body *domain.Writer
}

// CreateWriterInput wraps the create request for huma.
type CreateWriterInput struct {
	Body service.WriterRequest
}

// UpdateWriterInput wraps the update request for huma.
type UpdateWriterInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Writer ID"`
	Body service.WriterRequest
}

func (s *Server) handleListWriters(ctx context.Context, input *ListWritersInput) (*WriterPageOutput, error) {
	page, err := s.services.Catalog.ListWriters(ctx, store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor})
	if err != nil {
		return nil, err
	}
	return &WriterPageOutput{Body: page}, nil
}

func (s *Server) handleGetWriter(ctx context.Context, input *WriterIDInput) (*WriterOutput, error) {
	w, err := s.services.Catalog.GetWriter(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &WriterOutput{Body: w}, nil
}

func (s *Server) handleCreateWriter(ctx context.Context, input *CreateWriterInput) (*WriterOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	w, err := s.services.Catalog.CreateWriter(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &WriterOutput{Body: w}, nil
}

func (s *Server) handleUpdateWriter(ctx context.Context, input *UpdateWriterInput) (*WriterOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	w, err := s.services.Catalog.UpdateWriter(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &WriterOutput{Body: w}, nil
}

func (s *Server) handleDeleteWriter(ctx context.Context, input *WriterIDInput) (*struct{}, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Catalog.DeleteWriter(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
