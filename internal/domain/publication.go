package domain

import (
	"slices"
	"strings"
)

// FeatureVector is an opaque term-weight map produced by the offline
// similarity job. The catalog stores it but never interprets it.
type FeatureVector map[string]float64

// Publication is a catalog entry.
type Publication struct {
	Timestamps
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	ISBN            string         `json:"isbn,omitempty"`
	ISBN13          string         `json:"isbn13,omitempty"`
	Language        string         `json:"language,omitempty"`
	AverageRating   float64        `json:"average_rating,omitempty"`
	Format          string         `json:"format,omitempty"`
	PageCount       int            `json:"page_count,omitempty"`
	Publisher       string         `json:"publisher,omitempty"`
	PublicationDate string         `json:"publication_date,omitempty"` // free text, e.g. "Spring 1998"
	Description     string         `json:"description,omitempty"`
	CoverURL        string         `json:"cover_url,omitempty"`
	Features        FeatureVector  `json:"features,omitempty"`
	Writers         []Writer       `json:"writers"`
	Shelves         []LibraryShelf `json:"shelves"`
}

// WriterNames returns "Given Surname" for every writer, in association order.
func (p *Publication) WriterNames() []string {
	names := make([]string, 0, len(p.Writers))
	for _, w := range p.Writers {
		names = append(names, w.FullName())
	}
	return names
}

// ShelfNames returns the names of the shelves the publication sits on.
func (p *Publication) ShelfNames() []string {
	names := make([]string, 0, len(p.Shelves))
	for _, s := range p.Shelves {
		names = append(names, s.Name)
	}
	return names
}

// HasWriter reports whether the writer ID is associated with the publication.
func (p *Publication) HasWriter(writerID int64) bool {
	return slices.ContainsFunc(p.Writers, func(w Writer) bool { return w.ID == writerID })
}

// Writer is a person credited on one or more publications.
type Writer struct {
	ID        int64  `json:"id"`
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD
}

// FullName returns "Given Surname".
func (w Writer) FullName() string {
	return strings.TrimSpace(w.GivenName + " " + w.Surname)
}

// LibraryShelf is a named grouping of publications shared across the catalog.
type LibraryShelf struct {
	ID   int64  `json:"id"`
	Name string `json:"shelf_name"`
}
