// Package cursor encodes opaque page tokens for the action history.
//
// A token remembers the last sequence number returned and is bound to the
// session and filter that produced it, so a token cannot be replayed against
// a different query.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is the decoded form of a page token.
type Cursor struct {
	Seq        int64  `json:"s"`
	SessionID  string `json:"sid"`
	FilterHash string `json:"fh,omitempty"`
}

// New returns a cursor positioned after seq for the given session and filter.
func New(seq int64, sessionID, filter string) Cursor {
	return Cursor{Seq: seq, SessionID: sessionID, FilterHash: HashFilter(filter)}
}

// Encode serializes c into a URL-safe token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, fmt.Errorf("page token is required")
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	if c.Seq < 0 {
		return Cursor{}, fmt.Errorf("page token sequence must not be negative")
	}
	if c.SessionID == "" {
		return Cursor{}, fmt.Errorf("page token session is required")
	}
	return c, nil
}

// HashFilter returns a short stable hash of filter; empty for an empty filter.
func HashFilter(filter string) string {
	if filter == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(sum[:8])
}

// Validate checks that c was issued for sessionID and filter.
func Validate(c Cursor, sessionID, filter string) error {
	if c.SessionID != sessionID {
		return fmt.Errorf("page token was issued for a different session")
	}
	if c.FilterHash != HashFilter(filter) {
		return fmt.Errorf("page token was issued for a different filter")
	}
	return nil
}
