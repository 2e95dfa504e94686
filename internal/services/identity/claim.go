package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
)

// ClaimResult reports what registration-time claiming did for a user
type ClaimResult struct {
	// Identity is the user's primary identity after claiming
	Identity *model.Identity
	// Created is true if no guest identity matched and a fresh identity
	// was created for the user
	Created bool
	// Claimed lists the guest identities additionally linked into the
	// primary because their aliases matched the username
	Claimed []model.IdentityID
	// Propagation holds per-collection results for the alias claims
	Propagation []propagation.Result
}

// ClaimOnRegistration runs when a user registers: the unclaimed guest
// identity whose name matches the username is atomically reassigned to
// the user, or a fresh identity is created if none matches. Guest
// identities whose aliases match the username are additionally linked in,
// with their game references retargeted. Every step uses conditional
// writes, so two concurrent registrations can never claim the same
// identity or create duplicates.
func (s *Service) ClaimOnRegistration(ctx context.Context, user *model.User) (*ClaimResult, error) {
	normalized := model.Normalize(user.Username)
	if normalized == "" {
		return nil, model.ErrInvalidName
	}

	result := &ClaimResult{}

	// Gathered up front: one of these guests may be holding the name
	// reservation the primary identity needs
	aliasGuests, err := s.storage.FindGuestsByAlias(ctx, normalized)
	if err != nil {
		return nil, err
	}

	primary, created, err := s.claimOrCreatePrimary(ctx, normalized, user)
	if errors.Is(err, model.ErrNameInUse) {
		primary, created, err = s.createFromAliasOwner(ctx, normalized, user)
	}
	if err != nil {
		return nil, err
	}
	result.Identity = primary
	result.Created = created

	if created {
		s.logger.Info("identity created for user",
			slog.String("identity_id", string(primary.ID)),
			slog.String("user_id", string(user.ID)),
		)
	} else {
		s.logger.Info("guest identity claimed by user",
			slog.String("identity_id", string(primary.ID)),
			slog.String("user_id", string(user.ID)),
		)
	}

	// Guests whose aliases (not primary name) match the username are
	// linked in exactly as the linker would, so the link stays
	// reversible
	now := s.clock.Now()
	for _, guest := range aliasGuests {
		if guest.ID == primary.ID {
			continue
		}
		// The username now belongs to the primary identity for good. The
		// guest copy here may predate the alias release in
		// createFromAliasOwner, so strip it before persisting, or the
		// alias would come back with the guest at unlink.
		guest.RemoveAlias(normalized)
		s.linkInto(guest, primary, string(user.ID), now)
		if err := s.storage.SaveIdentities(ctx, guest, primary); err != nil {
			return nil, err
		}

		s.logger.Info("guest identity claimed via alias",
			slog.String("guest_id", string(guest.ID)),
			slog.String("identity_id", string(primary.ID)),
			slog.String("user_id", string(user.ID)),
		)

		result.Claimed = append(result.Claimed, guest.ID)
		results := s.propagator.Propagate(ctx, guest.ID, primary.ID, propagation.Options{StampPrevious: true})
		result.Propagation = append(result.Propagation, results...)
	}

	return result, nil
}

// claimOrCreatePrimary finds the user's primary identity: an atomic claim
// of a matching unclaimed guest, the user's existing identity, or a
// conditionally-inserted fresh one. Creation races loop back into a
// claim attempt, never into a duplicate.
func (s *Service) claimOrCreatePrimary(ctx context.Context, normalized string, user *model.User) (*model.Identity, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.storage.ClaimIdentity(ctx, normalized, user.ID, s.clock.Now())
		if err == nil {
			return claimed, false, nil
		}
		if errors.Is(err, model.ErrUserHasIdentity) {
			existing, ferr := s.storage.FindIdentityByUserID(ctx, user.ID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		if !errors.Is(err, model.ErrIdentityNotFound) {
			return nil, false, err
		}

		now := s.clock.Now()
		identity := &model.Identity{
			ID:             model.IdentityID(s.idgen.NewID()),
			DisplayName:    user.Username,
			NormalizedName: normalized,
			UserID:         user.ID,
			Kind:           model.KindUser,
			Status:         model.StatusActive,
			CreatedAt:      now,
			CreatedBy:      string(user.ID),
			UpdatedAt:      now,
		}
		err = s.storage.CreateIdentity(ctx, identity)
		if err == nil {
			return identity, true, nil
		}
		if errors.Is(err, model.ErrUserHasIdentity) {
			existing, ferr := s.storage.FindIdentityByUserID(ctx, user.ID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		if !errors.Is(err, model.ErrNameInUse) {
			return nil, false, err
		}
		// The name appeared between claim and create; try claiming the
		// newcomer
	}

	// The name is actively owned by an identity that is not claimable
	// (most likely another user's identity)
	return nil, false, model.ErrNameInUse
}

// createFromAliasOwner handles a username whose name reservation is held
// by an unclaimed guest's alias. The alias is released from the guest so
// the user's primary identity can be created; the guest itself is linked
// in afterwards by the alias-claim pass, which re-parents its games.
func (s *Service) createFromAliasOwner(ctx context.Context, normalized string, user *model.User) (*model.Identity, bool, error) {
	owner, err := s.storage.FindIdentityByName(ctx, normalized)
	if err != nil {
		return nil, false, err
	}
	if !owner.IsActive() || owner.Kind != model.KindGuest || owner.UserID != "" ||
		owner.NormalizedName == normalized || !owner.HasAlias(normalized) {
		return nil, false, model.ErrNameInUse
	}

	now := s.clock.Now()
	owner.RemoveAlias(normalized)
	owner.UpdatedAt = now
	if err := s.storage.SaveIdentity(ctx, owner); err != nil {
		return nil, false, err
	}

	identity := &model.Identity{
		ID:             model.IdentityID(s.idgen.NewID()),
		DisplayName:    user.Username,
		NormalizedName: normalized,
		UserID:         user.ID,
		Kind:           model.KindUser,
		Status:         model.StatusActive,
		CreatedAt:      now,
		CreatedBy:      string(user.ID),
		UpdatedAt:      now,
	}
	if err := s.storage.CreateIdentity(ctx, identity); err != nil {
		return nil, false, err
	}
	return identity, true, nil
}
