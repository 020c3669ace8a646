package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the last session of a history page.
type Cursor struct {
	LastProbeID string `json:"id"`
	LastTime    int64  `json:"ts"` // issued_at, Unix nanoseconds
}

// EncodeCursor encodes a cursor to a base64 URL-safe string.
// Returns empty string if cursor is nil or invalid.
func EncodeCursor(c *Cursor) string {
	if c == nil || c.LastProbeID == "" {
		return ""
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes a base64-encoded cursor string.
// Returns nil and no error for an empty cursor (first page).
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if c.LastProbeID == "" {
		return nil, fmt.Errorf("invalid cursor: missing probe ID")
	}
	return &c, nil
}

// after reports whether (ts, id) sorts after the cursor position in
// newest-first order.
func (c *Cursor) after(ts int64, id string) bool {
	if ts != c.LastTime {
		return ts < c.LastTime
	}
	return id < c.LastProbeID
}
