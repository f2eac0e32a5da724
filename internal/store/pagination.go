package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // items per page (defaults to DefaultPageSize, capped at MaxPageSize)
	Cursor string // opaque cursor for the next page (empty for the first page)
}

// PaginatedResult contains one page of items and its continuation.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// Validate clamps Limit into range.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

// EncodeCursor turns a position (last seen ID, or an offset for ranked
// results) into an opaque cursor.
func EncodeCursor(pos int64) string {
	if pos <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(pos, 10)))
}

// DecodeCursor reverses EncodeCursor. The empty cursor decodes to 0.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	pos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return pos, nil
}
