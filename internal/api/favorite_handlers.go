package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/domain"
)

func (s *Server) registerFavoriteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFavorites",
		Method:      http.MethodGet,
		Path:        "/api/v1/favorites",
		Summary:     "List favorites",
		Description: "Returns the current user's favorite publications, newest first",
		Tags:        []string{"Favorites"},
		Security:    bearerAuth,
	}, s.handleListFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addFavorite",
		Method:        http.MethodPost,
		Path:          "/api/v1/favorites",
		Summary:       "Add favorite",
		Description:   "Favorites a publication and returns refreshed recommendations",
		Tags:          []string{"Favorites"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleAddFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeFavorite",
		Method:        http.MethodDelete,
		Path:          "/api/v1/favorites/{publication_id}",
		Summary:       "Remove favorite",
		Tags:          []string{"Favorites"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/v1/recommendations",
		Summary:     "Get recommendations",
		Description: "Publications similar to the user's favorites. Anonymous callers get an empty list.",
		Tags:        []string{"Favorites"},
	}, s.handleRecommendations)
}

// PublicationListOutput wraps a plain publication list for huma.
type PublicationListOutput struct {
	Body []*domain.Publication
}

// AddFavoriteInput contains the publication to favorite.
type AddFavoriteInput struct {
	Body struct {
		PublicationID int64 `json:"publication_id" minimum:"1" doc:"Publication ID"`
	}
}

// AddFavoriteResponse confirms the favorite and carries new recommendations.
type AddFavoriteResponse struct {
	Detail          string                `json:"detail"`
	Recommendations []*domain.Publication `json:"recommendations"`
}

// AddFavoriteOutput wraps the add response for huma.
type AddFavoriteOutput struct {
	Body AddFavoriteResponse
}

// RemoveFavoriteInput addresses a favorite by publication.
type RemoveFavoriteInput struct {
	PublicationID int64 `path:"publication_id" minimum:"1" doc:"Publication ID"`
}

func (s *Server) handleListFavorites(ctx context.Context, _ *struct{}) (*PublicationListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	pubs, err := s.services.Favorites.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicationListOutput{Body: nonNil(pubs)}, nil
}

func (s *Server) handleAddFavorite(ctx context.Context, input *AddFavoriteInput) (*AddFavoriteOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	_, recs, err := s.services.Favorites.AddFavorite(ctx, userID, input.Body.PublicationID)
	if err != nil {
		return nil, err
	}
	return &AddFavoriteOutput{Body: AddFavoriteResponse{
		Detail:          "Publication added to favorites.",
		Recommendations: nonNil(recs),
	}}, nil
}

func (s *Server) handleRemoveFavorite(ctx context.Context, input *RemoveFavoriteInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Favorites.RemoveFavorite(ctx, userID, input.PublicationID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRecommendations(ctx context.Context, _ *struct{}) (*PublicationListOutput, error) {
	recs, err := s.services.Favorites.Recommendations(ctx, optionalUserID(ctx))
	if err != nil {
		return nil, err
	}
	return &PublicationListOutput{Body: nonNil(recs)}, nil
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil(pubs []*domain.Publication) []*domain.Publication {
	if pubs == nil {
		return []*domain.Publication{}
	}
	return pubs
}
