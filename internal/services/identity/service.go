package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Cap on following MergedInto pointers; the merge engine keeps the graph
// a forest, so hitting this means corrupted data
const maxMergeHops = 16

// DefaultSearchLimit is the page size used when a search specifies none
const DefaultSearchLimit = 50

// MaxSearchLimit caps requested page sizes
const MaxSearchLimit = 200

// Service owns canonical player identities: it resolves names to
// identities, merges and splits them, links guests to users, and claims
// identities at registration. Structural changes go through the
// propagator to keep game records consistent.
type Service struct {
	storage    storage.Storage
	propagator *propagation.Propagator
	clock      clock.Clock
	idgen      idgen.Generator
	logger     *slog.Logger
}

// New creates a new identity Service
func New(
	store storage.Storage,
	propagator *propagation.Propagator,
	clk clock.Clock,
	gen idgen.Generator,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:    store,
		propagator: propagator,
		clock:      clk,
		idgen:      gen,
		logger:     logger,
	}
}

// ResolveOptions control identity creation on first sighting of a name
type ResolveOptions struct {
	// Kind for a newly-created identity; defaults to guest
	Kind model.IdentityKind
	// CreatedBy records the actor (or subsystem) that caused creation
	CreatedBy string
}

// Resolve finds the canonical identity for a display name, creating a new
// guest identity on first sighting. Matching covers primary names,
// aliases and name history, all case-insensitively. Under concurrent
// calls for the same unseen name exactly one identity is created; losers
// of the creation race re-read and return the winner.
func (s *Service) Resolve(ctx context.Context, name string, opts ResolveOptions) (*model.Identity, error) {
	normalized := model.Normalize(name)
	if normalized == "" {
		return nil, model.ErrInvalidName
	}

	kind := opts.Kind
	if kind == "" {
		kind = model.KindGuest
	}

	for attempt := 0; attempt < 3; attempt++ {
		found, err := s.storage.FindIdentityByName(ctx, normalized)
		if err == nil {
			return s.resolveTerminal(ctx, found)
		}
		if !errors.Is(err, model.ErrIdentityNotFound) {
			return nil, err
		}

		now := s.clock.Now()
		identity := &model.Identity{
			ID:             model.IdentityID(s.idgen.NewID()),
			DisplayName:    strings.TrimSpace(name),
			NormalizedName: normalized,
			Kind:           kind,
			Status:         model.StatusActive,
			CreatedAt:      now,
			CreatedBy:      opts.CreatedBy,
			UpdatedAt:      now,
		}

		err = s.storage.CreateIdentity(ctx, identity)
		if err == nil {
			s.logger.Info("identity created",
				slog.String("identity_id", string(identity.ID)),
				slog.String("normalized_name", normalized),
				slog.String("kind", string(kind)),
			)
			return identity, nil
		}
		if !errors.Is(err, model.ErrNameInUse) {
			return nil, err
		}
		// Lost a creation race; re-read the winner. The winner's record
		// may not be readable yet on backends that reserve the name
		// before writing the body, hence the loop.
	}

	return nil, model.ErrNameInUse
}

// resolveTerminal follows MergedInto pointers (from linked or merged
// identities) to the identity that is canonical for new references
func (s *Service) resolveTerminal(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	current := identity
	for hops := 0; current.MergedInto != "" && hops < maxMergeHops; hops++ {
		next, err := s.storage.GetIdentity(ctx, current.MergedInto)
		if err != nil {
			if errors.Is(err, model.ErrIdentityNotFound) {
				return current, nil
			}
			return nil, err
		}
		current = next
	}
	return current, nil
}

// Get returns an identity by ID
func (s *Service) Get(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	return s.storage.GetIdentity(ctx, id)
}

// SearchOptions narrow and paginate an identity search
type SearchOptions struct {
	Kind           model.IdentityKind
	Claimed        *bool
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// Search returns identities whose names match the query, paginated
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) (*storage.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	return s.storage.SearchIdentities(ctx, storage.SearchFilter{
		Query:          model.Normalize(query),
		Kind:           opts.Kind,
		Claimed:        opts.Claimed,
		IncludeDeleted: opts.IncludeDeleted,
		Offset:         opts.Offset,
		Limit:          limit,
	})
}

// Rename changes an identity's display name, recording the old name in
// its history. The new name must not be owned by another identity.
func (s *Service) Rename(ctx context.Context, id model.IdentityID, newName string, actorID string) (*model.Identity, error) {
	normalized := model.Normalize(newName)
	if normalized == "" {
		return nil, model.ErrInvalidName
	}

	identity, err := s.getWritable(ctx, id)
	if err != nil {
		return nil, err
	}

	if normalized != identity.NormalizedName {
		if err := s.checkNameAvailable(ctx, normalized, id); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	identity.NameHistory = append(identity.NameHistory, model.NameChange{
		Name:           identity.DisplayName,
		NormalizedName: identity.NormalizedName,
		ChangedAt:      now,
		ChangedBy:      actorID,
	})
	identity.DisplayName = strings.TrimSpace(newName)
	identity.NormalizedName = normalized
	// Renaming to one of its own aliases promotes the alias
	identity.RemoveAlias(normalized)
	identity.UpdatedAt = now

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// AddAlias adds an alternate name to an identity. Adding a name the
// identity already owns is a no-op; a name owned by a different
// non-deleted identity is a conflict.
func (s *Service) AddAlias(ctx context.Context, id model.IdentityID, name string, actorID string) (*model.Identity, error) {
	normalized := model.Normalize(name)
	if normalized == "" {
		return nil, model.ErrInvalidName
	}

	identity, err := s.getWritable(ctx, id)
	if err != nil {
		return nil, err
	}

	if identity.OwnsName(normalized) {
		return identity, nil
	}
	if err := s.checkNameAvailable(ctx, normalized, id); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	identity.Aliases = append(identity.Aliases, model.Alias{
		Name:           strings.TrimSpace(name),
		NormalizedName: normalized,
		AddedAt:        now,
		AddedBy:        actorID,
	})
	identity.UpdatedAt = now

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// RemoveAlias removes an alias from an identity
func (s *Service) RemoveAlias(ctx context.Context, id model.IdentityID, name string, actorID string) (*model.Identity, error) {
	normalized := model.Normalize(name)

	identity, err := s.getWritable(ctx, id)
	if err != nil {
		return nil, err
	}

	if !identity.RemoveAlias(normalized) {
		return nil, model.ErrAliasNotFound
	}
	identity.UpdatedAt = s.clock.Now()

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// SoftDelete marks an identity deleted. The identity is retained for
// game-history referential integrity, but its names and user ID stop
// blocking reuse.
func (s *Service) SoftDelete(ctx context.Context, id model.IdentityID, actorID string) (*model.Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status == model.StatusDeleted {
		return identity, nil
	}
	if identity.Status != model.StatusActive {
		return nil, model.ErrIdentityMerged
	}

	now := s.clock.Now()
	identity.Status = model.StatusDeleted
	identity.DeletedAt = &now
	identity.UpdatedAt = now

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Restore reactivates a soft-deleted identity. Its names and user ID may
// have been taken in the meantime, so both are re-checked.
func (s *Service) Restore(ctx context.Context, id model.IdentityID, actorID string) (*model.Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status != model.StatusDeleted {
		return identity, nil
	}

	for _, name := range identity.AllNormalizedNames() {
		if err := s.checkNameAvailable(ctx, name, id); err != nil {
			return nil, err
		}
	}
	if identity.UserID != "" {
		existing, err := s.storage.FindIdentityByUserID(ctx, identity.UserID)
		if err == nil && existing.ID != id {
			return nil, model.ErrUserHasIdentity
		}
		if err != nil && !errors.Is(err, model.ErrIdentityNotFound) {
			return nil, err
		}
	}

	identity.Status = model.StatusActive
	identity.DeletedAt = nil
	identity.UpdatedAt = s.clock.Now()

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// getWritable loads an identity and rejects terminal states
func (s *Service) getWritable(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	switch identity.Status {
	case model.StatusDeleted:
		return nil, model.ErrIdentityDeleted
	case model.StatusMerged, model.StatusLinked:
		return nil, model.ErrIdentityMerged
	}
	return identity, nil
}

// checkNameAvailable verifies that no non-deleted identity other than the
// given one actively owns the normalized name. Name-history matches do
// not block reuse.
func (s *Service) checkNameAvailable(ctx context.Context, normalized string, self model.IdentityID) error {
	existing, err := s.storage.FindIdentityByName(ctx, normalized)
	if err != nil {
		if errors.Is(err, model.ErrIdentityNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != self && existing.OwnsName(normalized) {
		return model.ErrNameInUse
	}
	return nil
}
