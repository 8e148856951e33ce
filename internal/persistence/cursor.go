// Package persistence contains helpers shared by store implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/healthsync/internal/domain"
)

const cursorSeparator = "|"

// EncodeCursor serialises a listing position into an opaque URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.StartedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	startedAt, id, ok := strings.Cut(string(decoded), cursorSeparator)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor timestamp", domain.ErrInvalidInput)
	}
	return &domain.Cursor{StartedAt: ts, ID: id}, nil
}
