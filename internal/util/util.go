// Package util contains small internal helpers shared across the engine.
package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new UUID string.
func NewID() string { return uuid.NewString() }

// ConversationID derives a stable conversation identifier for messages that
// arrive without one. One (tenant, address) pair maps to one conversation.
func ConversationID(tenantID, address string) string {
	return fmt.Sprintf("%s:%s", tenantID, address)
}

// NormalizeName lowercases and collapses interior whitespace for name
// comparison. Diacritics are left alone; roster entry and extracted name go
// through the same normalization so they cancel out.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// Truncate shortens s to at most n runes appending an ellipsis marker.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
