// Package syncx holds small helpers shared by the sync service's read APIs.
package syncx

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursor is a position in the sync history feed, ordered newest first.
// Format: base64url("<created_at>|<id>"). The id breaks ties between rows
// recorded in the same second, so pagination is deterministic.
type Cursor struct {
	CreatedAt int64
	ID        int64
}

// Zero reports whether the cursor points nowhere (start of the feed).
func (c Cursor) Zero() bool {
	return c.CreatedAt == 0 && c.ID == 0
}

// Encode renders an opaque cursor string. Empty for the zero cursor.
func Encode(c Cursor) string {
	if c.Zero() {
		return ""
	}
	raw := fmt.Sprintf("%d|%d", c.CreatedAt, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor string. Returns the zero cursor and false on any
// malformed input; callers treat that as "start over".
func Decode(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}
	parts := strings.Split(string(b), "|")
	if len(parts) != 2 {
		return Cursor{}, false
	}
	createdAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	return Cursor{CreatedAt: createdAt, ID: id}, true
}
