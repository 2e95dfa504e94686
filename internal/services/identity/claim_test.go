package identity_test

import (
	"github.com/scorekeep/scorekeep/internal/model"
)

func (s *ServiceSuite) TestClaimMatchingGuest() {
	guest := s.resolve("Carol")

	user := &model.User{ID: "user-1", Username: "carol"}
	result, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	s.False(result.Created)
	s.Equal(guest.ID, result.Identity.ID)
	s.Equal(model.KindUser, result.Identity.Kind)
	s.Equal(user.ID, result.Identity.UserID)
	s.Empty(result.Claimed)
}

func (s *ServiceSuite) TestClaimCreatesFreshIdentity() {
	user := &model.User{ID: "user-1", Username: "Carol"}
	result, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	s.True(result.Created)
	s.Equal("Carol", result.Identity.DisplayName)
	s.Equal(model.KindUser, result.Identity.Kind)
	s.Equal(user.ID, result.Identity.UserID)
}

func (s *ServiceSuite) TestClaimIsIdempotentPerUser() {
	user := &model.User{ID: "user-1", Username: "Carol"}
	first, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	again, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)
	s.False(again.Created)
	s.Equal(first.Identity.ID, again.Identity.ID)
}

func (s *ServiceSuite) TestClaimNameOwnedByAnotherUser() {
	first := &model.User{ID: "user-1", Username: "Carol"}
	_, err := s.svc.ClaimOnRegistration(s.ctx, first)
	s.Require().NoError(err)

	second := &model.User{ID: "user-2", Username: "carol"}
	_, err = s.svc.ClaimOnRegistration(s.ctx, second)
	s.ErrorIs(err, model.ErrNameInUse)
}

func (s *ServiceSuite) TestClaimLinksAliasMatches() {
	laptop := s.resolve("Dave-Laptop")
	_, err := s.svc.AddAlias(s.ctx, laptop.ID, "Dave", "test")
	s.Require().NoError(err)

	s.saveGame(model.CollectionTableGames, &model.GameRecord{
		ID: "g1",
		Players: []model.PlayerEntry{
			{Name: "Dave", IdentityID: laptop.ID, Score: 4},
		},
		WinnerIdentityID: laptop.ID,
	})

	user := &model.User{ID: "user-1", Username: "Dave"}
	result, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	// The alias reservation is released to the new primary identity
	s.True(result.Created)
	s.Equal("dave", result.Identity.NormalizedName)
	s.Require().Len(result.Claimed, 1)
	s.Equal(laptop.ID, result.Claimed[0])

	// The guest was linked in like any other link, reversibly
	linked, err := s.svc.Get(s.ctx, laptop.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusLinked, linked.Status)
	s.Equal(result.Identity.ID, linked.MergedInto)
	s.False(linked.HasAlias("dave"))

	primary, err := s.svc.Get(s.ctx, result.Identity.ID)
	s.Require().NoError(err)
	s.True(primary.HasAlias("dave-laptop"))
	s.NotNil(primary.FindLinkedIdentity(laptop.ID))

	// Games moved over with the reversal marker
	game, err := s.store.GetGame(s.ctx, model.CollectionTableGames, "g1")
	s.Require().NoError(err)
	s.Equal(result.Identity.ID, game.Players[0].IdentityID)
	s.Equal(laptop.ID, game.Players[0].PreviousIdentityID)
}

func (s *ServiceSuite) TestClaimPrefersPrimaryNameOverAlias() {
	primary := s.resolve("Eve")
	other := s.resolve("Eve-Phone")
	_, err := s.svc.AddAlias(s.ctx, other.ID, "Evie", "test")
	s.Require().NoError(err)

	user := &model.User{ID: "user-1", Username: "eve"}
	result, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	s.False(result.Created)
	s.Equal(primary.ID, result.Identity.ID)
	s.Empty(result.Claimed)

	// The unrelated guest keeps its alias
	after, err := s.svc.Get(s.ctx, other.ID)
	s.Require().NoError(err)
	s.True(after.HasAlias("evie"))
}

func (s *ServiceSuite) TestClaimRejectsBlankUsername() {
	user := &model.User{ID: "user-1", Username: "   "}
	_, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.ErrorIs(err, model.ErrInvalidName)
}
