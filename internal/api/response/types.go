package response

import (
	"time"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
)

// Alias represents an alternate name in API responses
type Alias struct {
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
	AddedBy string    `json:"added_by,omitempty"`
}

// AliasFromModel converts a model.Alias to a response Alias
func AliasFromModel(a model.Alias) Alias {
	return Alias{
		Name:    a.Name,
		AddedAt: a.AddedAt,
		AddedBy: a.AddedBy,
	}
}

// NameChange represents a historical name in API responses
type NameChange struct {
	Name      string    `json:"name"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

// NameChangeFromModel converts a model.NameChange
func NameChangeFromModel(c model.NameChange) NameChange {
	return NameChange{
		Name:      c.Name,
		ChangedAt: c.ChangedAt,
		ChangedBy: c.ChangedBy,
	}
}

// IdentityStats represents aggregate play statistics
type IdentityStats struct {
	TotalGames int        `json:"total_games"`
	TotalWins  int        `json:"total_wins"`
	LastGameAt *time.Time `json:"last_game_at,omitempty"`
}

// IdentityStatsFromModel converts model.IdentityStats
func IdentityStatsFromModel(s model.IdentityStats) IdentityStats {
	return IdentityStats{
		TotalGames: s.TotalGames,
		TotalWins:  s.TotalWins,
		LastGameAt: s.LastGameAt,
	}
}

// Identity represents an identity in API responses
type Identity struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name"`
	Kind        string        `json:"kind"`
	Status      string        `json:"status"`
	UserID      string        `json:"user_id,omitempty"`
	MergedInto  string        `json:"merged_into,omitempty"`
	Aliases     []Alias       `json:"aliases,omitempty"`
	NameHistory []NameChange  `json:"name_history,omitempty"`
	Stats       IdentityStats `json:"stats"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

// IdentityFromModel converts a model.Identity to a response Identity
func IdentityFromModel(id *model.Identity) Identity {
	out := Identity{
		ID:          string(id.ID),
		DisplayName: id.DisplayName,
		Kind:        string(id.Kind),
		Status:      string(id.Status),
		UserID:      string(id.UserID),
		MergedInto:  string(id.MergedInto),
		Stats:       IdentityStatsFromModel(id.Stats),
		CreatedAt:   id.CreatedAt,
		UpdatedAt:   id.UpdatedAt,
		DeletedAt:   id.DeletedAt,
	}
	for _, a := range id.Aliases {
		out.Aliases = append(out.Aliases, AliasFromModel(a))
	}
	for _, c := range id.NameHistory {
		out.NameHistory = append(out.NameHistory, NameChangeFromModel(c))
	}
	return out
}

// SearchResponse is the response for identity search
type SearchResponse struct {
	Identities []Identity `json:"identities"`
	Total      int        `json:"total"`
}

// PropagationResult reports the outcome of rewriting one collection
type PropagationResult struct {
	Collection string `json:"collection"`
	Updated    int    `json:"updated"`
	Error      string `json:"error,omitempty"`
}

// PropagationFromResults converts propagation results
func PropagationFromResults(results []propagation.Result) []PropagationResult {
	out := make([]PropagationResult, 0, len(results))
	for _, r := range results {
		pr := PropagationResult{
			Collection: r.Collection,
			Updated:    r.Updated,
		}
		if r.Err != nil {
			pr.Error = r.Err.Error()
		}
		out = append(out, pr)
	}
	return out
}

// MergeResponse is the response for merging identities
type MergeResponse struct {
	Target      Identity            `json:"target"`
	Merged      []Identity          `json:"merged"`
	Propagation []PropagationResult `json:"propagation"`
}

// MergeResponseFromResult converts an identity.MergeResult
func MergeResponseFromResult(res *identity.MergeResult) MergeResponse {
	out := MergeResponse{
		Target:      IdentityFromModel(res.Target),
		Propagation: PropagationFromResults(res.Propagation),
	}
	for _, m := range res.Merged {
		out.Merged = append(out.Merged, IdentityFromModel(m))
	}
	return out
}

// SplitResponse is the response for splitting an alias into a new identity
type SplitResponse struct {
	Source Identity `json:"source"`
	Split  Identity `json:"split"`
}

// LinkResponse is the response for linking or unlinking a guest identity
type LinkResponse struct {
	Guest       Identity            `json:"guest"`
	User        Identity            `json:"user"`
	Propagation []PropagationResult `json:"propagation"`
}

// User represents a registered account in API responses
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromModel converts a model.User
func UserFromModel(u *model.User) User {
	return User{
		ID:        string(u.ID),
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// RegisterResponse is the response for account registration
type RegisterResponse struct {
	User            User                `json:"user"`
	Identity        Identity            `json:"identity"`
	IdentityCreated bool                `json:"identity_created"`
	ClaimedGuests   []string            `json:"claimed_guests,omitempty"`
	Propagation     []PropagationResult `json:"propagation,omitempty"`
}

// RegisterResponseFromResult converts an account.RegisterResult-shaped pair
func RegisterResponseFromResult(user *model.User, claim *identity.ClaimResult) RegisterResponse {
	out := RegisterResponse{
		User:            UserFromModel(user),
		Identity:        IdentityFromModel(claim.Identity),
		IdentityCreated: claim.Created,
		Propagation:     PropagationFromResults(claim.Propagation),
	}
	for _, id := range claim.Claimed {
		out.ClaimedGuests = append(out.ClaimedGuests, string(id))
	}
	return out
}

// GamePlayer represents one player line of a recorded game
type GamePlayer struct {
	Name       string `json:"name"`
	IdentityID string `json:"identity_id"`
	Score      int    `json:"score"`
}

// Game represents a recorded game in API responses
type Game struct {
	ID        string       `json:"id"`
	Players   []GamePlayer `json:"players"`
	Winner    string       `json:"winner,omitempty"`
	Winners   []string     `json:"winners,omitempty"`
	PlayedAt  time.Time    `json:"played_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// GameFromModel converts a model.GameRecord
func GameFromModel(g *model.GameRecord) Game {
	out := Game{
		ID:        string(g.ID),
		Winner:    string(g.WinnerIdentityID),
		PlayedAt:  g.PlayedAt,
		CreatedAt: g.CreatedAt,
	}
	for _, p := range g.Players {
		out.Players = append(out.Players, GamePlayer{
			Name:       p.Name,
			IdentityID: string(p.IdentityID),
			Score:      p.Score,
		})
	}
	for _, w := range g.WinnerIdentityIDs {
		out.Winners = append(out.Winners, string(w))
	}
	return out
}

// GameListResponse is the response for listing games
type GameListResponse struct {
	Games []Game `json:"games"`
}
