package games_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/scorekeep/scorekeep/internal/dependencies/mocks"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/games"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
	"github.com/scorekeep/scorekeep/internal/storage/memory"
	"github.com/scorekeep/scorekeep/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *memory.Storage
	clock      *mocks.MockClock
	identities *identity.Service
	svc        *games.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	gen := mocks.NewMockIDGen()
	logger := testutil.NopLogger()

	collections := make([]propagation.Collection, 0, len(model.Collections()))
	for _, name := range model.Collections() {
		collections = append(collections, games.NewCollection(name, s.store, s.clock))
	}
	propagator := propagation.New(s.store, s.clock, gen, logger, collections...)
	s.identities = identity.New(s.store, propagator, s.clock, gen, logger)
	s.svc = games.New(s.store, s.identities, s.clock, gen, logger)
}

func (s *ServiceSuite) record(collection string, entries ...games.PlayerInput) *model.GameRecord {
	game, err := s.svc.RecordGame(s.ctx, collection, games.RecordGameInput{Players: entries})
	s.Require().NoError(err)
	return game
}

func (s *ServiceSuite) TestRecordGameResolvesPlayers() {
	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 21},
		games.PlayerInput{Name: "Bob", Score: 15},
	)

	s.Require().Len(game.Players, 2)
	s.NotEmpty(game.Players[0].IdentityID)
	s.NotEmpty(game.Players[1].IdentityID)
	s.Equal(game.Players[0].IdentityID, game.WinnerIdentityID)
	s.Equal(s.clock.Now(), game.PlayedAt)

	alice, err := s.identities.Get(s.ctx, game.Players[0].IdentityID)
	s.Require().NoError(err)
	s.Equal("Alice", alice.DisplayName)
	s.Equal(model.KindGuest, alice.Kind)
}

func (s *ServiceSuite) TestRecordGameReusesIdentities() {
	first := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 1},
		games.PlayerInput{Name: "Bob", Score: 2},
	)
	second := s.record(model.CollectionRankedGames,
		games.PlayerInput{Name: "alice", Score: 3},
		games.PlayerInput{Name: "BOB", Score: 4},
	)

	s.Equal(first.Players[0].IdentityID, second.Players[0].IdentityID)
	s.Equal(first.Players[1].IdentityID, second.Players[1].IdentityID)
}

func (s *ServiceSuite) TestRecordGameExplicitIdentity() {
	ident, err := s.identities.Resolve(s.ctx, "Alice", identity.ResolveOptions{})
	s.Require().NoError(err)

	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "The Ace", IdentityID: ident.ID, Score: 9},
	)

	s.Equal(ident.ID, game.Players[0].IdentityID)
	s.Equal("The Ace", game.Players[0].Name)

	// No identity was created for the free-form display name
	_, err = s.store.FindIdentityByName(s.ctx, "the ace")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *ServiceSuite) TestRecordGameTie() {
	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 10},
		games.PlayerInput{Name: "Bob", Score: 10},
		games.PlayerInput{Name: "Carol", Score: 3},
	)

	s.Empty(game.WinnerIdentityID)
	s.Require().Len(game.WinnerIdentityIDs, 2)
	s.Equal(game.Players[0].IdentityID, game.WinnerIdentityIDs[0])
	s.Equal(game.Players[1].IdentityID, game.WinnerIdentityIDs[1])
}

func (s *ServiceSuite) TestRecordGameBumpsStats() {
	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 21},
		games.PlayerInput{Name: "Bob", Score: 15},
	)

	alice, err := s.identities.Get(s.ctx, game.Players[0].IdentityID)
	s.Require().NoError(err)
	s.Equal(1, alice.Stats.TotalGames)
	s.Equal(1, alice.Stats.TotalWins)
	s.Require().NotNil(alice.Stats.LastGameAt)
	s.Equal(game.PlayedAt, *alice.Stats.LastGameAt)

	bob, err := s.identities.Get(s.ctx, game.Players[1].IdentityID)
	s.Require().NoError(err)
	s.Equal(1, bob.Stats.TotalGames)
	s.Zero(bob.Stats.TotalWins)
}

func (s *ServiceSuite) TestRecordGameCountsIdentityOncePerGame() {
	ident, err := s.identities.Resolve(s.ctx, "Alice", identity.ResolveOptions{})
	s.Require().NoError(err)

	// The same person on both sides of a doubles match
	s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", IdentityID: ident.ID, Score: 5},
		games.PlayerInput{Name: "Alice (sub)", IdentityID: ident.ID, Score: 2},
	)

	after, err := s.identities.Get(s.ctx, ident.ID)
	s.Require().NoError(err)
	s.Equal(1, after.Stats.TotalGames)
}

func (s *ServiceSuite) TestRecordGamePlayedAt() {
	playedAt := time.Date(2023, 6, 15, 18, 30, 0, 0, time.UTC)
	game, err := s.svc.RecordGame(s.ctx, model.CollectionTableGames, games.RecordGameInput{
		Players:  []games.PlayerInput{{Name: "Alice", Score: 1}},
		PlayedAt: playedAt,
	})
	s.Require().NoError(err)
	s.Equal(playedAt, game.PlayedAt)
}

func (s *ServiceSuite) TestRecordGameUnknownCollection() {
	_, err := s.svc.RecordGame(s.ctx, "nope", games.RecordGameInput{
		Players: []games.PlayerInput{{Name: "Alice", Score: 1}},
	})
	s.ErrorIs(err, model.ErrUnknownCollection)
}

func (s *ServiceSuite) TestRecordGameNoPlayers() {
	_, err := s.svc.RecordGame(s.ctx, model.CollectionTableGames, games.RecordGameInput{})
	s.ErrorIs(err, model.ErrNoPlayers)
}

func (s *ServiceSuite) TestGetGame() {
	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 1},
	)

	got, err := s.svc.GetGame(s.ctx, model.CollectionTableGames, game.ID)
	s.Require().NoError(err)
	s.Equal(game.ID, got.ID)

	_, err = s.svc.GetGame(s.ctx, model.CollectionRankedGames, game.ID)
	s.ErrorIs(err, model.ErrGameNotFound)

	_, err = s.svc.GetGame(s.ctx, "nope", game.ID)
	s.ErrorIs(err, model.ErrUnknownCollection)
}

func (s *ServiceSuite) TestListGamesForIdentity() {
	first := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 1},
		games.PlayerInput{Name: "Bob", Score: 2},
	)
	s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Bob", Score: 3},
		games.PlayerInput{Name: "Carol", Score: 4},
	)

	aliceID := first.Players[0].IdentityID
	list, err := s.svc.ListGamesForIdentity(s.ctx, model.CollectionTableGames, aliceID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(first.ID, list[0].ID)

	bobID := first.Players[1].IdentityID
	list, err = s.svc.ListGamesForIdentity(s.ctx, model.CollectionTableGames, bobID)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *ServiceSuite) TestRecomputeStats() {
	game := s.record(model.CollectionTableGames,
		games.PlayerInput{Name: "Alice", Score: 21},
		games.PlayerInput{Name: "Bob", Score: 15},
	)
	s.record(model.CollectionRankedGames,
		games.PlayerInput{Name: "Alice", Score: 3},
		games.PlayerInput{Name: "Bob", Score: 8},
	)

	// Corrupt the cached counters, then rebuild them from the records
	aliceID := game.Players[0].IdentityID
	alice, err := s.store.GetIdentity(s.ctx, aliceID)
	s.Require().NoError(err)
	alice.Stats = model.IdentityStats{TotalGames: 99, TotalWins: 99}
	s.Require().NoError(s.store.SaveIdentity(s.ctx, alice))

	rebuilt, err := s.svc.RecomputeStats(s.ctx, aliceID)
	s.Require().NoError(err)
	s.Equal(2, rebuilt.Stats.TotalGames)
	s.Equal(1, rebuilt.Stats.TotalWins)
	s.Require().NotNil(rebuilt.Stats.LastGameAt)
}
