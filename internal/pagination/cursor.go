// Package pagination provides cursor-based pagination utilities.
package pagination

import (
	"encoding/base64"
	"fmt"
)

// Cursor represents a position in a result set ordered by id.
type Cursor struct {
	ID string
}

// Encode returns an opaque cursor string for an id.
func Encode(id string) string {
	return base64.URLEncoding.EncodeToString([]byte(id))
}

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("invalid cursor")
	}
	return &Cursor{ID: string(raw)}, nil
}

// ComputePage takes a slice of items (fetched with limit+1), the requested
// limit, and a function to extract the id from the last item. Returns the
// trimmed items, next cursor, and has_more flag.
func ComputePage[T any](items []T, limit int, extractID func(T) string) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	return items, Encode(extractID(items[len(items)-1])), true
}
