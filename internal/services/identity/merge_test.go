package identity_test

import (
	"time"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
)

func (s *ServiceSuite) TestMergeFoldsSources() {
	target := s.resolve("Robert")
	source := s.resolve("Bob")
	_, err := s.svc.AddAlias(s.ctx, source.ID, "Bobby", "test")
	s.Require().NoError(err)

	last := s.clock.Now().Add(-time.Hour)
	source.Stats = model.IdentityStats{TotalGames: 3, TotalWins: 2, LastGameAt: &last}
	s.Require().NoError(s.store.SaveIdentity(s.ctx, source))
	target.Stats = model.IdentityStats{TotalGames: 1}
	s.Require().NoError(s.store.SaveIdentity(s.ctx, target))

	result, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.Require().NoError(err)

	s.Require().Len(result.Merged, 1)
	s.Equal(source.ID, result.Merged[0].ID)
	s.Equal(4, result.Target.Stats.TotalGames)
	s.Equal(2, result.Target.Stats.TotalWins)
	s.Require().NotNil(result.Target.Stats.LastGameAt)
	s.True(result.Target.HasAlias("bob"))
	s.True(result.Target.HasAlias("bobby"))

	merged, err := s.svc.Get(s.ctx, source.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusMerged, merged.Status)
	s.Equal(target.ID, merged.MergedInto)
}

func (s *ServiceSuite) TestMergeRewritesGameRecords() {
	target := s.resolve("Robert")
	source := s.resolve("Bob")
	dana := s.resolve("Dana")

	s.saveGame(model.CollectionTableGames, &model.GameRecord{
		ID: "g1",
		Players: []model.PlayerEntry{
			{Name: "Bob", IdentityID: source.ID, Score: 10},
			{Name: "Dana", IdentityID: dana.ID, Score: 5},
		},
		WinnerIdentityID: source.ID,
	})
	s.saveGame(model.CollectionRankedGames, &model.GameRecord{
		ID: "g2",
		Players: []model.PlayerEntry{
			{Name: "Bob", IdentityID: source.ID, Score: 1},
			{Name: "Dana", IdentityID: dana.ID, Score: 9},
		},
		WinnerIdentityID: dana.ID,
	})

	result, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.Require().NoError(err)
	s.Equal(2, propagation.TotalUpdated(result.Propagation))
	s.NoError(propagation.FirstError(result.Propagation))

	game, err := s.store.GetGame(s.ctx, model.CollectionTableGames, "g1")
	s.Require().NoError(err)
	s.Equal(target.ID, game.Players[0].IdentityID)
	s.Equal(target.ID, game.WinnerIdentityID)
	s.Equal(dana.ID, game.Players[1].IdentityID)

	// Nothing references the source anymore
	games, err := s.store.FindGamesByIdentity(s.ctx, model.CollectionRankedGames, source.ID)
	s.Require().NoError(err)
	s.Empty(games)
}

func (s *ServiceSuite) TestMergeSelfRejected() {
	target := s.resolve("Robert")

	_, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{target.ID}, "admin")
	s.ErrorIs(err, model.ErrCannotMergeSelf)
}

func (s *ServiceSuite) TestMergeRerunIsNoOp() {
	target := s.resolve("Robert")
	source := s.resolve("Bob")

	_, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.Require().NoError(err)

	again, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.Require().NoError(err)
	s.Empty(again.Merged)

	afterTarget, err := s.svc.Get(s.ctx, target.ID)
	s.Require().NoError(err)
	s.Len(afterTarget.Aliases, 1)
}

func (s *ServiceSuite) TestMergeSourceMergedElsewhere() {
	target := s.resolve("Robert")
	other := s.resolve("Charlie")
	source := s.resolve("Bob")

	_, err := s.svc.Merge(s.ctx, other.ID, []model.IdentityID{source.ID}, "admin")
	s.Require().NoError(err)

	_, err = s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.ErrorIs(err, model.ErrIdentityMerged)
}

func (s *ServiceSuite) TestMergeDeletedSourceRejected() {
	target := s.resolve("Robert")
	source := s.resolve("Bob")
	_, err := s.svc.SoftDelete(s.ctx, source.ID, "admin")
	s.Require().NoError(err)

	_, err = s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID}, "admin")
	s.ErrorIs(err, model.ErrIdentityDeleted)
}

func (s *ServiceSuite) TestMergeMissingSourceFailsWhole() {
	target := s.resolve("Robert")
	source := s.resolve("Bob")

	_, err := s.svc.Merge(s.ctx, target.ID, []model.IdentityID{source.ID, "missing"}, "admin")
	s.ErrorIs(err, model.ErrIdentityNotFound)

	// The loadable source was not touched
	after, err := s.svc.Get(s.ctx, source.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusActive, after.Status)
}

func (s *ServiceSuite) TestSplitCreatesNewGuest() {
	ident := s.resolve("Alice")
	_, err := s.svc.AddAlias(s.ctx, ident.ID, "Ali", "test")
	s.Require().NoError(err)

	split, err := s.svc.Split(s.ctx, ident.ID, "Ali", "admin")
	s.Require().NoError(err)

	s.Equal("Ali", split.DisplayName)
	s.Equal(model.KindGuest, split.Kind)
	s.NotEqual(ident.ID, split.ID)

	source, err := s.svc.Get(s.ctx, ident.ID)
	s.Require().NoError(err)
	s.Empty(source.Aliases)

	s.Equal(split.ID, s.resolve("ali").ID)
}

func (s *ServiceSuite) TestSplitLeavesGamesAlone() {
	ident := s.resolve("Alice")
	_, err := s.svc.AddAlias(s.ctx, ident.ID, "Ali", "test")
	s.Require().NoError(err)

	s.saveGame(model.CollectionTableGames, &model.GameRecord{
		ID:      "g1",
		Players: []model.PlayerEntry{{Name: "Ali", IdentityID: ident.ID, Score: 7}},
	})

	_, err = s.svc.Split(s.ctx, ident.ID, "Ali", "admin")
	s.Require().NoError(err)

	game, err := s.store.GetGame(s.ctx, model.CollectionTableGames, "g1")
	s.Require().NoError(err)
	s.Equal(ident.ID, game.Players[0].IdentityID)
}

func (s *ServiceSuite) TestSplitUnknownAlias() {
	ident := s.resolve("Alice")

	_, err := s.svc.Split(s.ctx, ident.ID, "nope", "admin")
	s.ErrorIs(err, model.ErrAliasNotFound)
}
