package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case SearchResult:
		o.printSearchResult(v)
	case MergeResult:
		o.printMergeResult(v)
	case SplitResult:
		o.printSplitResult(v)
	case LinkResult:
		o.printLinkResult(v)
	case RegisterResult:
		o.printRegisterResult(v)
	case User:
		o.printUser(v)
	case Game:
		o.printGame(v)
	case GameList:
		o.printGameList(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Alias response type (matches API)
type Alias struct {
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
	AddedBy string    `json:"added_by,omitempty"`
}

// NameChange response type
type NameChange struct {
	Name      string    `json:"name"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

// IdentityStats response type
type IdentityStats struct {
	TotalGames int        `json:"total_games"`
	TotalWins  int        `json:"total_wins"`
	LastGameAt *time.Time `json:"last_game_at,omitempty"`
}

// Identity response type
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
}

// SearchResult response type
type SearchResult struct {
	Identities []Identity `json:"identities"`
	Total      int        `json:"total"`
}

// PropagationResult response type
type PropagationResult struct {
	Collection string `json:"collection"`
	Updated    int    `json:"updated"`
	Error      string `json:"error,omitempty"`
}

// MergeResult response type
type MergeResult struct {
	Target      Identity            `json:"target"`
	Merged      []Identity          `json:"merged"`
	Propagation []PropagationResult `json:"propagation"`
}

// SplitResult response type
type SplitResult struct {
	Source Identity `json:"source"`
	Split  Identity `json:"split"`
}

// LinkResult response type
type LinkResult struct {
	Guest       Identity            `json:"guest"`
	User        Identity            `json:"user"`
	Propagation []PropagationResult `json:"propagation"`
}

// User response type
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterResult response type
type RegisterResult struct {
	User            User                `json:"user"`
	Identity        Identity            `json:"identity"`
	IdentityCreated bool                `json:"identity_created"`
	ClaimedGuests   []string            `json:"claimed_guests,omitempty"`
	Propagation     []PropagationResult `json:"propagation,omitempty"`
}

// GamePlayer response type
type GamePlayer struct {
	Name       string `json:"name"`
	IdentityID string `json:"identity_id"`
	Score      int    `json:"score"`
}

// Game response type
type Game struct {
	ID        string       `json:"id"`
	Players   []GamePlayer `json:"players"`
	Winner    string       `json:"winner,omitempty"`
	Winners   []string     `json:"winners,omitempty"`
	PlayedAt  time.Time    `json:"played_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// GameList response type
type GameList struct {
	Games []Game `json:"games"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printIdentity(id Identity) {
	fmt.Printf("Identity: %s (%s)\n", id.DisplayName, id.ID)
	fmt.Printf("Kind: %s\n", id.Kind)
	fmt.Printf("Status: %s\n", id.Status)
	if id.UserID != "" {
		fmt.Printf("User: %s\n", id.UserID)
	}
	if id.MergedInto != "" {
		fmt.Printf("Merged Into: %s\n", id.MergedInto)
	}
	if len(id.Aliases) > 0 {
		names := make([]string, 0, len(id.Aliases))
		for _, a := range id.Aliases {
			names = append(names, a.Name)
		}
		fmt.Printf("Aliases: %s\n", strings.Join(names, ", "))
	}
	if len(id.NameHistory) > 0 {
		fmt.Printf("Name History (%d):\n", len(id.NameHistory))
		for _, c := range id.NameHistory {
			fmt.Printf("  %s (until %s)\n", c.Name, c.ChangedAt.Format(time.RFC3339))
		}
	}
	fmt.Printf("Games: %d played, %d won\n", id.Stats.TotalGames, id.Stats.TotalWins)
	if id.Stats.LastGameAt != nil {
		fmt.Printf("Last Game: %s\n", id.Stats.LastGameAt.Format(time.RFC3339))
	}
}

func (o *Output) printSearchResult(r SearchResult) {
	fmt.Printf("Identities (%d of %d):\n", len(r.Identities), r.Total)
	for _, id := range r.Identities {
		fmt.Printf("  %s  %s  %s/%s\n", id.ID, id.DisplayName, id.Kind, id.Status)
	}
}

func (o *Output) printPropagation(results []PropagationResult) {
	for _, pr := range results {
		if pr.Error != "" {
			fmt.Printf("  %s: %d updated (queued for retry: %s)\n", pr.Collection, pr.Updated, pr.Error)
		} else {
			fmt.Printf("  %s: %d updated\n", pr.Collection, pr.Updated)
		}
	}
}

func (o *Output) printMergeResult(r MergeResult) {
	fmt.Printf("Merged %d identities into %s (%s)\n", len(r.Merged), r.Target.DisplayName, r.Target.ID)
	fmt.Println("Propagation:")
	o.printPropagation(r.Propagation)
}

func (o *Output) printSplitResult(r SplitResult) {
	fmt.Printf("Split %s (%s) out of %s (%s)\n", r.Split.DisplayName, r.Split.ID, r.Source.DisplayName, r.Source.ID)
}

func (o *Output) printLinkResult(r LinkResult) {
	fmt.Printf("Guest: %s (%s) -> %s\n", r.Guest.DisplayName, r.Guest.ID, r.Guest.Status)
	fmt.Printf("User Identity: %s (%s)\n", r.User.DisplayName, r.User.ID)
	fmt.Println("Propagation:")
	o.printPropagation(r.Propagation)
}

func (o *Output) printUser(u User) {
	fmt.Printf("User: %s (%s)\n", u.Username, u.ID)
}

func (o *Output) printRegisterResult(r RegisterResult) {
	o.printUser(r.User)
	if r.IdentityCreated {
		fmt.Printf("Identity: %s (%s) [created]\n", r.Identity.DisplayName, r.Identity.ID)
	} else {
		fmt.Printf("Identity: %s (%s) [claimed]\n", r.Identity.DisplayName, r.Identity.ID)
	}
	if len(r.ClaimedGuests) > 0 {
		fmt.Printf("Claimed Guests: %s\n", strings.Join(r.ClaimedGuests, ", "))
	}
}

func (o *Output) printGame(g Game) {
	fmt.Printf("Game: %s\n", g.ID)
	fmt.Printf("Played: %s\n", g.PlayedAt.Format(time.RFC3339))
	fmt.Printf("Players (%d):\n", len(g.Players))
	for _, p := range g.Players {
		marker := ""
		if p.IdentityID == g.Winner {
			marker = "  *winner*"
		}
		for _, w := range g.Winners {
			if p.IdentityID == w {
				marker = "  *winner*"
			}
		}
		fmt.Printf("  %s (%s): %d%s\n", p.Name, p.IdentityID, p.Score, marker)
	}
}

func (o *Output) printGameList(l GameList) {
	fmt.Printf("Games (%d):\n", len(l.Games))
	for _, g := range l.Games {
		fmt.Printf("  %s  %s  %d players\n", g.ID, g.PlayedAt.Format(time.RFC3339), len(g.Players))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
