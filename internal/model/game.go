package model

import "time"

// GameID uniquely identifies a recorded game within a collection
type GameID string

// Collection names for the game-record stores that carry identity
// references
const (
	CollectionTableGames  = "table_games"
	CollectionRankedGames = "ranked_games"
)

// Collections lists every game-record collection the propagator must
// keep consistent with the identity store
func Collections() []string {
	return []string{CollectionTableGames, CollectionRankedGames}
}

// PlayerEntry is one player's row in a recorded game. IdentityID is
// required once the player has been resolved; PreviousIdentityID is set
// by link propagation so the link can be reversed later.
type PlayerEntry struct {
	Name               string
	IdentityID         IdentityID
	PreviousIdentityID IdentityID
	Score              int
}

// GameRecord is a finished game stored in one of the game collections.
// Identity references inside it are eventually consistent with the
// identity store; the propagator repairs them after merges and links.
type GameRecord struct {
	ID      GameID
	Players []PlayerEntry

	// Winner references; single-winner games set WinnerIdentityID,
	// games that allow ties set WinnerIdentityIDs
	WinnerIdentityID  IdentityID
	WinnerIdentityIDs []IdentityID

	PlayedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReferencesIdentity reports whether any player entry or winner field
// references the given identity
func (g *GameRecord) ReferencesIdentity(id IdentityID) bool {
	for _, p := range g.Players {
		if p.IdentityID == id {
			return true
		}
	}
	if g.WinnerIdentityID == id {
		return true
	}
	for _, w := range g.WinnerIdentityIDs {
		if w == id {
			return true
		}
	}
	return false
}

// HasPreviousIdentity reports whether any player entry carries the given
// identity as its pre-link identity
func (g *GameRecord) HasPreviousIdentity(id IdentityID) bool {
	for _, p := range g.Players {
		if p.PreviousIdentityID == id {
			return true
		}
	}
	return false
}

// IsWinner reports whether the given identity appears in either winner field
func (g *GameRecord) IsWinner(id IdentityID) bool {
	if g.WinnerIdentityID == id {
		return true
	}
	for _, w := range g.WinnerIdentityIDs {
		if w == id {
			return true
		}
	}
	return false
}
