package request

// ResolveIdentityRequest is the request body for resolving a name to an identity
type ResolveIdentityRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// RenameIdentityRequest is the request body for renaming an identity
type RenameIdentityRequest struct {
	NewName string `json:"new_name"`
}

// AddAliasRequest is the request body for adding an alias
type AddAliasRequest struct {
	Alias string `json:"alias"`
}

// MergeRequest is the request body for merging identities
type MergeRequest struct {
	SourceIDs []string `json:"source_ids"`
}

// SplitRequest is the request body for splitting an alias out of an identity
type SplitRequest struct {
	Alias string `json:"alias"`
}

// LinkRequest is the request body for linking a guest identity to a user
type LinkRequest struct {
	UserID string `json:"user_id"`
}

// UnlinkRequest is the request body for undoing a guest-to-user link
type UnlinkRequest struct {
	UserID string `json:"user_id"`
}

// RegisterRequest is the request body for registering a user account
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PlayerEntry is a single player line in a game submission
type PlayerEntry struct {
	Name       string `json:"name,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Score      int    `json:"score"`
}

// RecordGameRequest is the request body for recording a finished game
type RecordGameRequest struct {
	Collection string        `json:"collection"`
	Players    []PlayerEntry `json:"players"`
	PlayedAt   string        `json:"played_at,omitempty"`
}
