// Package store defines the persistence contracts for the Libris server.
// The sqlite subpackage provides the implementation.
package store

import (
	"context"
	"net/http"
	"time"

	"github.com/librisapp/libris-server/internal/domain"
)

// ErrLimitReached is returned when an insert would push a bounded per-user
// collection past its cap.
var ErrLimitReached = &Error{
	Code:    http.StatusUnprocessableEntity,
	Message: "limit reached",
}

// Store is the full persistence surface used by the services.
type Store interface {
	UserStore
	SessionStore
	CatalogStore
	FavoriteStore
	SimilarityStore

	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// SessionStore persists refresh-token sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// PublicationFilter narrows a publication listing.
type PublicationFilter struct {
	// Search matches title, writer given name and writer surname (case-insensitive substring).
	Search string
}

// CatalogStore persists publications, writers and shelves.
type CatalogStore interface {
	// CreatePublication inserts the publication and links its writers and
	// shelves, creating any that do not exist by natural key. IDs are
	// written back into p.
	CreatePublication(ctx context.Context, p *domain.Publication) error
	// UpdatePublication rewrites the publication's fields and replaces its
	// writer and shelf associations.
	UpdatePublication(ctx context.Context, p *domain.Publication) error
	DeletePublication(ctx context.Context, id int64) error
	GetPublication(ctx context.Context, id int64) (*domain.Publication, error)
	// GetPublicationsByIDs returns the publications in the order of ids,
	// silently skipping IDs that do not exist.
	GetPublicationsByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error)
	ListPublications(ctx context.Context, filter PublicationFilter, params PaginationParams) (*PaginatedResult[*domain.Publication], error)
	PublicationExists(ctx context.Context, id int64) (bool, error)
	// ISBNTaken reports whether another publication (not excludeID) holds isbn.
	ISBNTaken(ctx context.Context, isbn string, excludeID int64) (bool, error)

	CreateWriter(ctx context.Context, w *domain.Writer) error
	GetWriter(ctx context.Context, id int64) (*domain.Writer, error)
	UpdateWriter(ctx context.Context, w *domain.Writer) error
	DeleteWriter(ctx context.Context, id int64) error
	ListWriters(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Writer], error)
	// GetOrCreateWriter returns the writer matching (given name, surname),
	// inserting w when none exists.
	GetOrCreateWriter(ctx context.Context, w *domain.Writer) (*domain.Writer, error)

	GetOrCreateShelf(ctx context.Context, name string) (*domain.LibraryShelf, error)
	GetShelf(ctx context.Context, id int64) (*domain.LibraryShelf, error)
	ListShelves(ctx context.Context) ([]*domain.LibraryShelf, error)
}

// FavoriteStore persists per-user favorites.
type FavoriteStore interface {
	// AddFavorite inserts the pair inside one write transaction that also
	// enforces limit. Returns ErrAlreadyExists for a duplicate pair,
	// ErrLimitReached when the user already holds limit favorites and
	// ErrNotFound when the publication does not exist.
	AddFavorite(ctx context.Context, userID string, publicationID int64, limit int) (*domain.Favorite, error)
	// RemoveFavorite deletes the pair or returns ErrNotFound.
	RemoveFavorite(ctx context.Context, userID string, publicationID int64) error
	// FavoriteIDs returns favorited publication IDs, newest first.
	FavoriteIDs(ctx context.Context, userID string) ([]int64, error)
	// FavoritePublications returns favorited publications, newest first.
	FavoritePublications(ctx context.Context, userID string) ([]*domain.Publication, error)
	CountFavorites(ctx context.Context, userID string) (int, error)
}

// SimilarityStore is the query and ingestion surface of the similarity graph.
type SimilarityStore interface {
	// EdgesFrom returns every edge whose origin is in origins.
	EdgesFrom(ctx context.Context, origins []int64) ([]domain.SimilarityEdge, error)
	// AggregateFrom sums scores per destination over edges leaving origins,
	// excluding destinations in origins, ordered by score descending then
	// destination ascending, truncated to limit.
	AggregateFrom(ctx context.Context, origins []int64, limit int) ([]domain.Candidate, error)
	// UpsertSimilarities writes edges in one transaction, replacing the
	// score of existing (origin, destination) pairs.
	UpsertSimilarities(ctx context.Context, edges []domain.SimilarityEdge) (int, error)
	CountSimilarities(ctx context.Context) (int, error)

	CreateSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error
	FinishSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error
	ListSimilarityImports(ctx context.Context, limit int) ([]*domain.SimilarityImport, error)
}

// Stats summarizes table sizes for the admin CLI and health checks.
type Stats struct {
	Users        int `json:"users"`
	Publications int `json:"publications"`
	Writers      int `json:"writers"`
	Shelves      int `json:"shelves"`
	Favorites    int `json:"favorites"`
	Similarities int `json:"similarities"`
}
