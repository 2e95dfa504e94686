package storage

import (
	"context"
	"strings"
	"time"

	"github.com/scorekeep/scorekeep/internal/model"
)

// SearchFilter narrows an identity search
type SearchFilter struct {
	// Query is matched as a substring against normalized primary names
	// and alias names; empty matches everything
	Query string
	// Kind restricts results to one identity kind; empty matches all
	Kind model.IdentityKind
	// Claimed filters on whether the identity has an owning user
	Claimed *bool
	// IncludeDeleted includes soft-deleted and merged identities
	IncludeDeleted bool

	Offset int
	Limit  int
}

// Matches reports whether an identity satisfies the filter, ignoring
// pagination. Shared by the storage backends so they agree on semantics.
func (f SearchFilter) Matches(identity *model.Identity) bool {
	if !f.IncludeDeleted && identity.Status != model.StatusActive {
		return false
	}
	if f.Kind != "" && identity.Kind != f.Kind {
		return false
	}
	if f.Claimed != nil && (identity.UserID != "") != *f.Claimed {
		return false
	}
	if f.Query == "" {
		return true
	}
	for _, name := range identity.AllNormalizedNames() {
		if strings.Contains(name, f.Query) {
			return true
		}
	}
	return false
}

// SearchResult is a page of identities plus the total match count
type SearchResult struct {
	Identities []*model.Identity
	Total      int
}

// Storage defines the interface for data persistence.
//
// The conditional operations (CreateIdentity, ClaimIdentity, CreateUser)
// are the uniqueness constraints the rest of the system relies on:
// concurrent duplicate creation must be detected here, not by
// application-level locking. Get-or-create of a user's identity is built
// from CreateIdentity's ErrUserHasIdentity plus FindIdentityByUserID.
type Storage interface {
	// Identity operations
	//
	// CreateIdentity inserts a new identity, failing with
	// model.ErrNameInUse if another non-deleted identity owns its
	// normalized name, or model.ErrUserHasIdentity if another
	// non-deleted identity owns its user ID.
	CreateIdentity(ctx context.Context, identity *model.Identity) error
	// SaveIdentity persists changes to an existing identity and keeps
	// the name and user indexes in sync with its current state
	SaveIdentity(ctx context.Context, identity *model.Identity) error
	// SaveIdentities persists several identities as a single unit where
	// the backend supports it; callers must still design the mutation so
	// that re-applying it is safe
	SaveIdentities(ctx context.Context, identities ...*model.Identity) error
	GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error)
	// FindIdentityByName looks up an identity by normalized name,
	// checking active primary names and aliases first, then falling back
	// to name history (which may return a linked identity whose
	// MergedInto pointer the caller should follow)
	FindIdentityByName(ctx context.Context, normalized string) (*model.Identity, error)
	// FindIdentityByUserID returns the non-deleted identity owned by the
	// given user
	FindIdentityByUserID(ctx context.Context, userID model.UserID) (*model.Identity, error)
	// FindGuestsByAlias returns active unclaimed guest identities that
	// carry the given normalized name as an alias (not as their primary
	// name)
	FindGuestsByAlias(ctx context.Context, normalized string) ([]*model.Identity, error)
	// ClaimIdentity atomically assigns the single active unclaimed guest
	// identity whose primary normalized name matches to the given user,
	// setting its kind to user and its update time to now. Returns
	// model.ErrIdentityNotFound when there is nothing to claim.
	ClaimIdentity(ctx context.Context, normalized string, userID model.UserID, now time.Time) (*model.Identity, error)
	SearchIdentities(ctx context.Context, filter SearchFilter) (*SearchResult, error)

	// User operations
	//
	// CreateUser fails with model.ErrUsernameExists if the username is
	// taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// Game operations, keyed by collection name
	SaveGame(ctx context.Context, collection string, game *model.GameRecord) error
	GetGame(ctx context.Context, collection string, id model.GameID) (*model.GameRecord, error)
	// FindGamesByIdentity returns games whose player entries or winner
	// fields reference the identity
	FindGamesByIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error)
	// FindGamesByPreviousIdentity returns games with a player entry whose
	// PreviousIdentityID equals the given identity
	FindGamesByPreviousIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error)

	// Propagation outbox operations
	EnqueueTask(ctx context.Context, task *model.PropagationTask) error
	ListPendingTasks(ctx context.Context, limit int) ([]*model.PropagationTask, error)
	UpdateTask(ctx context.Context, task *model.PropagationTask) error
	CompleteTask(ctx context.Context, id model.TaskID) error
}
