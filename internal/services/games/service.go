package games

import (
	"context"
	"log/slog"
	"time"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Service records finished games and maintains the cached identity stats
// derived from them. Recording a game is the integration point where new
// guest identities are born: any player entry without an identity is run
// through the resolver.
type Service struct {
	storage     storage.Storage
	identities  *identity.Service
	clock       clock.Clock
	idgen       idgen.Generator
	logger      *slog.Logger
	collections map[string]*Collection
}

// New creates a new games Service over the standard collections
func New(
	store storage.Storage,
	identities *identity.Service,
	clk clock.Clock,
	gen idgen.Generator,
	logger *slog.Logger,
) *Service {
	collections := make(map[string]*Collection)
	for _, name := range model.Collections() {
		collections[name] = NewCollection(name, store, clk)
	}
	return &Service{
		storage:     store,
		identities:  identities,
		clock:       clk,
		idgen:       gen,
		logger:      logger,
		collections: collections,
	}
}

// Collections returns the collection collaborators, for propagator wiring
func (s *Service) Collections() []*Collection {
	result := make([]*Collection, 0, len(s.collections))
	for _, name := range model.Collections() {
		result = append(result, s.collections[name])
	}
	return result
}

// PlayerInput is one player's result in a game being recorded. IdentityID
// may be left empty, in which case the name is resolved (creating a guest
// identity on first sighting).
type PlayerInput struct {
	Name       string
	IdentityID model.IdentityID
	Score      int
}

// RecordGameInput describes a finished game
type RecordGameInput struct {
	Players  []PlayerInput
	PlayedAt time.Time
}

// RecordGame persists a finished game, resolving identities for players
// that lack one and computing the winner(s) from scores
func (s *Service) RecordGame(ctx context.Context, collection string, input RecordGameInput) (*model.GameRecord, error) {
	if _, ok := s.collections[collection]; !ok {
		return nil, model.ErrUnknownCollection
	}
	if len(input.Players) == 0 {
		return nil, model.ErrNoPlayers
	}

	now := s.clock.Now()
	playedAt := input.PlayedAt
	if playedAt.IsZero() {
		playedAt = now
	}

	players := make([]model.PlayerEntry, 0, len(input.Players))
	for _, p := range input.Players {
		entry := model.PlayerEntry{
			Name:       p.Name,
			IdentityID: p.IdentityID,
			Score:      p.Score,
		}
		if entry.IdentityID == "" {
			resolved, err := s.identities.Resolve(ctx, p.Name, identity.ResolveOptions{CreatedBy: "game-save"})
			if err != nil {
				return nil, err
			}
			entry.IdentityID = resolved.ID
		}
		players = append(players, entry)
	}

	game := &model.GameRecord{
		ID:        model.GameID(s.idgen.NewID()),
		Players:   players,
		PlayedAt:  playedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	assignWinners(game)

	if err := s.storage.SaveGame(ctx, collection, game); err != nil {
		return nil, err
	}

	s.logger.Info("game recorded",
		slog.String("collection", collection),
		slog.String("game_id", string(game.ID)),
		slog.Int("players", len(game.Players)),
	)

	if err := s.bumpStats(ctx, game); err != nil {
		// Stats are a derived cache; a failed bump is repairable via
		// RecomputeStats
		s.logger.Warn("failed to update identity stats",
			slog.String("game_id", string(game.ID)),
			slog.String("error", err.Error()),
		)
	}

	return game, nil
}

// assignWinners sets the winner fields from the highest score; ties go to
// the multi-winner field
func assignWinners(game *model.GameRecord) {
	best := game.Players[0].Score
	for _, p := range game.Players[1:] {
		if p.Score > best {
			best = p.Score
		}
	}

	var winners []model.IdentityID
	for _, p := range game.Players {
		if p.Score == best {
			winners = append(winners, p.IdentityID)
		}
	}

	if len(winners) == 1 {
		game.WinnerIdentityID = winners[0]
		game.WinnerIdentityIDs = nil
	} else {
		game.WinnerIdentityID = ""
		game.WinnerIdentityIDs = winners
	}
}

// bumpStats increments the cached counters for every identity in the game
func (s *Service) bumpStats(ctx context.Context, game *model.GameRecord) error {
	now := s.clock.Now()
	var updated []*model.Identity
	seen := make(map[model.IdentityID]struct{})

	for _, p := range game.Players {
		if _, ok := seen[p.IdentityID]; ok {
			continue
		}
		seen[p.IdentityID] = struct{}{}

		ident, err := s.storage.GetIdentity(ctx, p.IdentityID)
		if err != nil {
			return err
		}
		ident.Stats.TotalGames++
		if game.IsWinner(p.IdentityID) {
			ident.Stats.TotalWins++
		}
		playedAt := game.PlayedAt
		if ident.Stats.LastGameAt == nil || playedAt.After(*ident.Stats.LastGameAt) {
			ident.Stats.LastGameAt = &playedAt
		}
		ident.UpdatedAt = now
		updated = append(updated, ident)
	}

	return s.storage.SaveIdentities(ctx, updated...)
}

// GetGame returns a game by collection and ID
func (s *Service) GetGame(ctx context.Context, collection string, id model.GameID) (*model.GameRecord, error) {
	if _, ok := s.collections[collection]; !ok {
		return nil, model.ErrUnknownCollection
	}
	return s.storage.GetGame(ctx, collection, id)
}

// ListGamesForIdentity returns the games in a collection referencing an
// identity
func (s *Service) ListGamesForIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error) {
	if _, ok := s.collections[collection]; !ok {
		return nil, model.ErrUnknownCollection
	}
	return s.storage.FindGamesByIdentity(ctx, collection, id)
}

// RecomputeStats rebuilds an identity's cached counters from the game
// records across every collection
func (s *Service) RecomputeStats(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	ident, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := model.IdentityStats{}
	for name := range s.collections {
		games, err := s.storage.FindGamesByIdentity(ctx, name, id)
		if err != nil {
			return nil, err
		}
		for _, game := range games {
			stats.TotalGames++
			if game.IsWinner(id) {
				stats.TotalWins++
			}
			playedAt := game.PlayedAt
			if stats.LastGameAt == nil || playedAt.After(*stats.LastGameAt) {
				stats.LastGameAt = &playedAt
			}
		}
	}

	ident.Stats = stats
	ident.UpdatedAt = s.clock.Now()
	if err := s.storage.SaveIdentity(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}
