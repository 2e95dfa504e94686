package model

import "time"

// User is a registered account. Stored separately from identities so the
// password hash never travels with identity records.
type User struct {
	ID           UserID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
