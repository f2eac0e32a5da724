package domain

import "time"

// DefaultFavoriteLimit is the maximum number of favorites a user may hold.
const DefaultFavoriteLimit = 20

// Favorite marks a publication as a favorite of a user.
type Favorite struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	PublicationID int64     `json:"publication_id"`
	CreatedAt     time.Time `json:"created_at"`
}
