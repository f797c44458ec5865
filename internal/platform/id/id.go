// Package id generates URL-safe identifiers for sessions, requests and room
// grants.
//
// Identifiers are UUIDv7 bytes in lowercase unpadded base32 (RFC 4648), a
// 26-character string whose leading bits carry the creation time.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new identifier.
func NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
