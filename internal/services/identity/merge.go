package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
)

// MergeResult is the outcome of a merge: the updated target, the folded
// sources, and the per-collection propagation results
type MergeResult struct {
	Target      *model.Identity
	Merged      []*model.Identity
	Propagation []propagation.Result
}

// Merge folds the source identities into the target: their names become
// target aliases, their history and stats are carried over, and they are
// marked merged. All sources must resolve or the whole operation fails
// before anything is written. Propagation runs only after the
// identity-store commit; re-running a merge with the same arguments is
// safe (already-merged sources are no-ops, duplicate aliases are
// skipped).
func (s *Service) Merge(ctx context.Context, targetID model.IdentityID, sourceIDs []model.IdentityID, actorID string) (*MergeResult, error) {
	target, err := s.getWritable(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("merge target %s: %w", targetID, err)
	}

	// Load every source up front; a missing source fails the merge
	sources := make([]*model.Identity, 0, len(sourceIDs))
	for _, sourceID := range sourceIDs {
		if sourceID == targetID {
			return nil, model.ErrCannotMergeSelf
		}
		source, err := s.storage.GetIdentity(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("merge source %s: %w", sourceID, err)
		}
		switch source.Status {
		case model.StatusMerged:
			if source.MergedInto == targetID {
				continue // Already merged here; re-run is a no-op
			}
			return nil, fmt.Errorf("merge source %s: %w", sourceID, model.ErrIdentityMerged)
		case model.StatusLinked:
			return nil, fmt.Errorf("merge source %s: %w", sourceID, model.ErrAlreadyLinked)
		case model.StatusDeleted:
			return nil, fmt.Errorf("merge source %s: %w", sourceID, model.ErrIdentityDeleted)
		}
		// The target must never end up merged into one of its sources
		if target.MergedInto == sourceID {
			return nil, model.ErrCannotMergeSelf
		}
		sources = append(sources, source)
	}

	now := s.clock.Now()
	for _, source := range sources {
		s.foldInto(target, source, actorID)
		source.Status = model.StatusMerged
		source.MergedInto = target.ID
		source.DeletedAt = &now
		source.UpdatedAt = now
	}
	target.UpdatedAt = now

	// Sources first so their freed names can become target aliases
	batch := make([]*model.Identity, 0, len(sources)+1)
	batch = append(batch, sources...)
	batch = append(batch, target)
	if err := s.storage.SaveIdentities(ctx, batch...); err != nil {
		return nil, err
	}

	result := &MergeResult{Target: target}
	for _, source := range sources {
		result.Merged = append(result.Merged, source)
		s.logger.Info("identity merged",
			slog.String("source_id", string(source.ID)),
			slog.String("target_id", string(target.ID)),
			slog.String("actor", actorID),
		)
		results := s.propagator.Propagate(ctx, source.ID, target.ID, propagation.Options{})
		result.Propagation = append(result.Propagation, results...)
	}

	return result, nil
}

// foldInto carries a source's names, history and stats onto the target
func (s *Service) foldInto(target, source *model.Identity, actorID string) {
	now := s.clock.Now()

	// The source's primary name becomes a target alias, unless the
	// names are identical (a name must not alias itself)
	if source.NormalizedName != target.NormalizedName && !target.HasAlias(source.NormalizedName) {
		target.Aliases = append(target.Aliases, model.Alias{
			Name:           source.DisplayName,
			NormalizedName: source.NormalizedName,
			AddedAt:        now,
			AddedBy:        actorID,
		})
	}

	for _, alias := range source.Aliases {
		if alias.NormalizedName == target.NormalizedName || target.HasAlias(alias.NormalizedName) {
			continue
		}
		target.Aliases = append(target.Aliases, alias)
	}

	target.NameHistory = append(target.NameHistory, source.NameHistory...)

	target.Stats.TotalGames += source.Stats.TotalGames
	target.Stats.TotalWins += source.Stats.TotalWins
	if source.Stats.LastGameAt != nil {
		if target.Stats.LastGameAt == nil || source.Stats.LastGameAt.After(*target.Stats.LastGameAt) {
			last := *source.Stats.LastGameAt
			target.Stats.LastGameAt = &last
		}
	}
}

// Split removes an alias from an identity and creates a brand-new guest
// identity from it. Split is a forward-looking correction: existing game
// references are deliberately not repointed, unlike merge.
func (s *Service) Split(ctx context.Context, id model.IdentityID, aliasName string, actorID string) (*model.Identity, error) {
	normalized := model.Normalize(aliasName)

	source, err := s.getWritable(ctx, id)
	if err != nil {
		return nil, err
	}

	var alias *model.Alias
	for i := range source.Aliases {
		if source.Aliases[i].NormalizedName == normalized {
			alias = &source.Aliases[i]
			break
		}
	}
	if alias == nil {
		return nil, model.ErrAliasNotFound
	}

	now := s.clock.Now()
	split := &model.Identity{
		ID:             model.IdentityID(s.idgen.NewID()),
		DisplayName:    strings.TrimSpace(alias.Name),
		NormalizedName: alias.NormalizedName,
		Kind:           model.KindGuest,
		Status:         model.StatusActive,
		CreatedAt:      now,
		CreatedBy:      actorID,
		UpdatedAt:      now,
	}

	source.RemoveAlias(normalized)
	source.UpdatedAt = now

	// Free the alias name before the new identity claims it
	if err := s.storage.SaveIdentity(ctx, source); err != nil {
		return nil, err
	}
	if err := s.storage.CreateIdentity(ctx, split); err != nil {
		return nil, err
	}

	s.logger.Info("identity split",
		slog.String("source_id", string(source.ID)),
		slog.String("split_id", string(split.ID)),
		slog.String("alias", normalized),
		slog.String("actor", actorID),
	)
	return split, nil
}
