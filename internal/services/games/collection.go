package games

import (
	"context"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Collection adapts one game-record store to the propagator's collaborator
// interface. Rewrites are idempotent: when nothing references the
// identity anymore, both operations are no-ops.
type Collection struct {
	name    string
	storage storage.Storage
	clock   clock.Clock
}

// NewCollection creates a collection collaborator for the given name
func NewCollection(name string, store storage.Storage, clk clock.Clock) *Collection {
	return &Collection{
		name:    name,
		storage: store,
		clock:   clk,
	}
}

// Ensure Collection implements the propagation interface
var _ propagation.Collection = (*Collection)(nil)

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// ReplaceIdentity rewrites all references to oldID to newID, returning
// the number of games updated
func (c *Collection) ReplaceIdentity(ctx context.Context, oldID, newID model.IdentityID, stampPrevious bool) (int, error) {
	games, err := c.storage.FindGamesByIdentity(ctx, c.name, oldID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, game := range games {
		changed := false
		for i := range game.Players {
			if game.Players[i].IdentityID != oldID {
				continue
			}
			game.Players[i].IdentityID = newID
			if stampPrevious {
				game.Players[i].PreviousIdentityID = oldID
			}
			changed = true
		}
		if game.WinnerIdentityID == oldID {
			game.WinnerIdentityID = newID
			changed = true
		}
		for i, w := range game.WinnerIdentityIDs {
			if w == oldID {
				game.WinnerIdentityIDs[i] = newID
				changed = true
			}
		}
		if !changed {
			continue
		}

		game.UpdatedAt = c.clock.Now()
		if err := c.storage.SaveGame(ctx, c.name, game); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// RestoreIdentity reverses stamped rewrites: player entries whose
// previousIdentityId equals prevID get their identityId restored and the
// marker cleared, along with any winner references the rewrite touched
func (c *Collection) RestoreIdentity(ctx context.Context, prevID model.IdentityID) (int, error) {
	games, err := c.storage.FindGamesByPreviousIdentity(ctx, c.name, prevID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, game := range games {
		changed := false
		for i := range game.Players {
			if game.Players[i].PreviousIdentityID != prevID {
				continue
			}
			replaced := game.Players[i].IdentityID
			game.Players[i].IdentityID = prevID
			game.Players[i].PreviousIdentityID = ""
			changed = true

			// The winner fields followed the player forward on link;
			// follow them back
			if game.WinnerIdentityID == replaced {
				game.WinnerIdentityID = prevID
			}
			for j, w := range game.WinnerIdentityIDs {
				if w == replaced {
					game.WinnerIdentityIDs[j] = prevID
				}
			}
		}
		if !changed {
			continue
		}

		game.UpdatedAt = c.clock.Now()
		if err := c.storage.SaveGame(ctx, c.name, game); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
