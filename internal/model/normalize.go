package model

import "strings"

// Normalize maps a display name to its comparable form: lowercase with
// leading and trailing whitespace trimmed. Every identity lookup and
// uniqueness check operates on normalized values; display values are
// presentation-only.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
