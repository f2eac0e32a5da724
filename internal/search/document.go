// Package search keeps a Bleve full-text index over the catalog: publications
// by title, writer, publisher and description, and writers by name.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
)

// DocType discriminates documents in the shared index.
type DocType string

// Document types.
const (
	DocTypePublication DocType = "publication"
	DocTypeWriter      DocType = "writer"
)

// Document is the indexed form of a catalog entity. Writer names and shelf
// names are denormalized onto publications so one query covers both.
type Document struct {
	ID   string  // "publication:42", "writer:7"
	Type DocType // discriminator

	Title       string
	Writers     []string
	Publisher   string
	Description string
	ISBN        string
	Language    string
	Shelves     []string

	AverageRating float64
	PageCount     int
	UpdatedAt     int64 // Unix millis
}

// DocID builds the index key for an entity.
func DocID(t DocType, id int64) string {
	return string(t) + ":" + strconv.FormatInt(id, 10)
}

// ParseDocID splits an index key back into type and numeric ID.
func ParseDocID(docID string) (DocType, int64, error) {
	t, raw, ok := strings.Cut(docID, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed document id %q", docID)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed document id %q: %w", docID, err)
	}
	return DocType(t), n, nil
}

// PublicationDocument builds the document for p.
func PublicationDocument(p *domain.Publication) *Document {
	return &Document{
		ID:            DocID(DocTypePublication, p.ID),
		Type:          DocTypePublication,
		Title:         p.Title,
		Writers:       p.WriterNames(),
		Publisher:     p.Publisher,
		Description:   p.Description,
		ISBN:          p.ISBN,
		Language:      p.Language,
		Shelves:       p.ShelfNames(),
		AverageRating: p.AverageRating,
		PageCount:     p.PageCount,
		UpdatedAt:     p.UpdatedAt.UnixMilli(),
	}
}

// WriterDocument builds the document for w.
func WriterDocument(w *domain.Writer) *Document {
	return &Document{
		ID:    DocID(DocTypeWriter, w.ID),
		Type:  DocTypeWriter,
		Title: w.FullName(),
	}
}

// toMap keys fields by their mapping names. Empty optional fields are
// omitted so they do not pollute facets.
func (d *Document) toMap() map[string]any {
	m := map[string]any{
		"type":       string(d.Type),
		"title":      d.Title,
		"updated_at": float64(d.UpdatedAt),
	}
	if len(d.Writers) > 0 {
		m["writers"] = d.Writers
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if len(d.Shelves) > 0 {
		m["shelves"] = d.Shelves
	}
	if d.Type == DocTypePublication {
		m["average_rating"] = d.AverageRating
		m["page_count"] = float64(d.PageCount)
	}
	return m
}
