package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityMerged   = errors.New("identity has been merged")
	ErrIdentityDeleted  = errors.New("identity is deleted")
	ErrInvalidName      = errors.New("name is empty after normalization")

	// Uniqueness conflicts; a conditional create that loses a race also
	// returns ErrNameInUse, which callers recover by re-reading the winner
	ErrNameInUse        = errors.New("name is already in use by another identity")
	ErrUserHasIdentity  = errors.New("user already has an identity")
	ErrAliasNotFound    = errors.New("alias not found on identity")
	ErrCannotMergeSelf  = errors.New("identity cannot be merged into itself")
	ErrAlreadyLinked    = errors.New("identity is already linked to a user")
	ErrNotLinked        = errors.New("identity is not linked to this user")
	ErrNotGuestIdentity = errors.New("identity is not a guest identity")

	// User errors
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")

	// Game errors
	ErrGameNotFound      = errors.New("game not found")
	ErrUnknownCollection = errors.New("unknown game collection")
	ErrNoPlayers         = errors.New("game has no players")

	// Outbox errors
	ErrTaskNotFound = errors.New("propagation task not found")
)
