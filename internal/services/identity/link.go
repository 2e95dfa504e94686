package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
)

// LinkResult reports a guest -> user link, including per-collection game
// update counts. A collection error means that collection is temporarily
// stale, not that the link failed.
type LinkResult struct {
	Guest        *model.Identity
	User         *model.Identity
	GamesUpdated int
	Collections  []propagation.Result
}

// UnlinkResult reports a reversed link
type UnlinkResult struct {
	Guest        *model.Identity
	User         *model.Identity
	GamesUpdated int
	Collections  []propagation.Result
}

// LinkGuestToUser reversibly folds a guest identity into the identity of
// a registered user. The guest keeps its record (kind imported, pointing
// at the user identity) so UnlinkGuestFromUser can restore it, and game
// records rewritten by propagation are stamped with the guest's ID.
func (s *Service) LinkGuestToUser(ctx context.Context, guestID model.IdentityID, userID model.UserID, actorID string) (*LinkResult, error) {
	guest, err := s.storage.GetIdentity(ctx, guestID)
	if err != nil {
		return nil, err
	}
	switch {
	case guest.Status == model.StatusLinked:
		return nil, model.ErrAlreadyLinked
	case guest.Status == model.StatusMerged:
		return nil, model.ErrIdentityMerged
	case guest.Status == model.StatusDeleted:
		return nil, model.ErrIdentityDeleted
	case guest.UserID != "" || guest.Kind != model.KindGuest:
		// Linking an identity that belongs to a real account would
		// steal that user's history
		return nil, model.ErrNotGuestIdentity
	}

	now := s.clock.Now()

	userIdentity, err := s.storage.FindIdentityByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, model.ErrIdentityNotFound) {
			return nil, err
		}
		// First identity for this user; it takes over the guest's name
		userIdentity = &model.Identity{
			ID:             model.IdentityID(s.idgen.NewID()),
			DisplayName:    guest.DisplayName,
			NormalizedName: guest.NormalizedName,
			UserID:         userID,
			Kind:           model.KindUser,
			Status:         model.StatusActive,
			CreatedAt:      now,
			CreatedBy:      actorID,
			UpdatedAt:      now,
		}
	}

	s.linkInto(guest, userIdentity, actorID, now)

	// Guest first so its freed names can become user aliases
	if err := s.storage.SaveIdentities(ctx, guest, userIdentity); err != nil {
		return nil, err
	}

	s.logger.Info("guest linked to user",
		slog.String("guest_id", string(guest.ID)),
		slog.String("user_identity_id", string(userIdentity.ID)),
		slog.String("user_id", string(userID)),
		slog.String("actor", actorID),
	)

	results := s.propagator.Propagate(ctx, guest.ID, userIdentity.ID, propagation.Options{StampPrevious: true})

	return &LinkResult{
		Guest:        guest,
		User:         userIdentity,
		GamesUpdated: propagation.TotalUpdated(results),
		Collections:  results,
	}, nil
}

// linkInto mutates both identities for a guest -> user link: names are
// copied onto the user identity, a reversal record is appended, and the
// guest becomes an imported remnant pointing at the user identity
func (s *Service) linkInto(guest, userIdentity *model.Identity, actorID string, now time.Time) {
	if guest.NormalizedName != userIdentity.NormalizedName && !userIdentity.HasAlias(guest.NormalizedName) {
		userIdentity.Aliases = append(userIdentity.Aliases, model.Alias{
			Name:           guest.DisplayName,
			NormalizedName: guest.NormalizedName,
			AddedAt:        now,
			AddedBy:        actorID,
		})
	}
	for _, alias := range guest.Aliases {
		if alias.NormalizedName == userIdentity.NormalizedName || userIdentity.HasAlias(alias.NormalizedName) {
			continue
		}
		userIdentity.Aliases = append(userIdentity.Aliases, alias)
	}

	userIdentity.LinkedIdentities = append(userIdentity.LinkedIdentities, model.LinkedIdentity{
		IdentityID:          guest.ID,
		LinkedAt:            now,
		LinkedBy:            actorID,
		OriginalDisplayName: guest.DisplayName,
	})
	userIdentity.UpdatedAt = now

	guest.MergedInto = userIdentity.ID
	guest.Kind = model.KindImported
	guest.Status = model.StatusLinked
	guest.UpdatedAt = now
}

// UnlinkGuestFromUser reverses a link: game records stamped with the
// guest's ID get it back, the copied names leave the user identity, and
// the guest becomes an active guest again. A user identity that was
// created at link time holds the guest's primary name; it cannot keep it
// once the guest is active again, so it falls back to the account
// username, or fails with a conflict when that name is taken too.
func (s *Service) UnlinkGuestFromUser(ctx context.Context, guestID model.IdentityID, userID model.UserID, actorID string) (*UnlinkResult, error) {
	userIdentity, err := s.storage.FindIdentityByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userIdentity.FindLinkedIdentity(guestID) == nil {
		return nil, model.ErrNotLinked
	}

	guest, err := s.storage.GetIdentity(ctx, guestID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// The guest reclaims its primary name; two active identities must
	// never own the same normalized name
	if userIdentity.NormalizedName == guest.NormalizedName {
		user, err := s.storage.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		username := model.Normalize(user.Username)
		if username == guest.NormalizedName || guest.OwnsName(username) {
			return nil, model.ErrNameInUse
		}
		if err := s.checkNameAvailable(ctx, username, userIdentity.ID); err != nil {
			return nil, err
		}
		userIdentity.NameHistory = append(userIdentity.NameHistory, model.NameChange{
			Name:           userIdentity.DisplayName,
			NormalizedName: userIdentity.NormalizedName,
			ChangedAt:      now,
			ChangedBy:      actorID,
		})
		userIdentity.DisplayName = user.Username
		userIdentity.NormalizedName = username
		userIdentity.RemoveAlias(username)
	}

	// Give the guest its names back
	if guest.NormalizedName != userIdentity.NormalizedName {
		userIdentity.RemoveAlias(guest.NormalizedName)
	}
	for _, alias := range guest.Aliases {
		if alias.NormalizedName != userIdentity.NormalizedName {
			userIdentity.RemoveAlias(alias.NormalizedName)
		}
	}
	userIdentity.RemoveLinkedIdentity(guestID)
	userIdentity.UpdatedAt = now

	guest.Kind = model.KindGuest
	guest.Status = model.StatusActive
	guest.MergedInto = ""
	guest.UpdatedAt = now

	// User first so the freed names can return to the guest
	if err := s.storage.SaveIdentities(ctx, userIdentity, guest); err != nil {
		return nil, err
	}

	s.logger.Info("guest unlinked from user",
		slog.String("guest_id", string(guest.ID)),
		slog.String("user_identity_id", string(userIdentity.ID)),
		slog.String("user_id", string(userID)),
		slog.String("actor", actorID),
	)

	results := s.propagator.Restore(ctx, guest.ID)

	return &UnlinkResult{
		Guest:        guest,
		User:         userIdentity,
		GamesUpdated: propagation.TotalUpdated(results),
		Collections:  results,
	}, nil
}
