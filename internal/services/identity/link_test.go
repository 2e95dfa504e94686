package identity_test

import (
	"github.com/scorekeep/scorekeep/internal/model"
)

func (s *ServiceSuite) TestLinkCreatesUserIdentity() {
	guest := s.resolve("Alice")
	s.saveGame(model.CollectionTableGames, &model.GameRecord{
		ID: "g1",
		Players: []model.PlayerEntry{
			{Name: "Alice", IdentityID: guest.ID, Score: 12},
		},
		WinnerIdentityID: guest.ID,
	})

	result, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-1", "admin")
	s.Require().NoError(err)

	s.Equal(model.UserID("user-1"), result.User.UserID)
	s.Equal(model.KindUser, result.User.Kind)
	s.Equal("alice", result.User.NormalizedName)
	s.Equal(1, result.GamesUpdated)

	s.Equal(model.StatusLinked, result.Guest.Status)
	s.Equal(model.KindImported, result.Guest.Kind)
	s.Equal(result.User.ID, result.Guest.MergedInto)

	// Game records now point at the user identity, stamped for reversal
	game, err := s.store.GetGame(s.ctx, model.CollectionTableGames, "g1")
	s.Require().NoError(err)
	s.Equal(result.User.ID, game.Players[0].IdentityID)
	s.Equal(guest.ID, game.Players[0].PreviousIdentityID)
	s.Equal(result.User.ID, game.WinnerIdentityID)

	// The guest's name resolves to the user identity
	s.Equal(result.User.ID, s.resolve("alice").ID)
}

func (s *ServiceSuite) TestLinkToExistingUserIdentity() {
	guest := s.resolve("Alice-Laptop")
	_, err := s.svc.AddAlias(s.ctx, guest.ID, "Al", "test")
	s.Require().NoError(err)

	user := &model.User{ID: "user-1", Username: "Alice"}
	claim, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)
	s.True(claim.Created)

	result, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, user.ID, "admin")
	s.Require().NoError(err)

	s.Equal(claim.Identity.ID, result.User.ID)
	s.True(result.User.HasAlias("alice-laptop"))
	s.True(result.User.HasAlias("al"))
	s.Require().NotNil(result.User.FindLinkedIdentity(guest.ID))
	s.Equal("Alice-Laptop", result.User.FindLinkedIdentity(guest.ID).OriginalDisplayName)
}

func (s *ServiceSuite) TestLinkRejectsClaimedIdentity() {
	user := &model.User{ID: "user-1", Username: "Alice"}
	claim, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	_, err = s.svc.LinkGuestToUser(s.ctx, claim.Identity.ID, "user-2", "admin")
	s.ErrorIs(err, model.ErrNotGuestIdentity)
}

func (s *ServiceSuite) TestLinkAlreadyLinked() {
	guest := s.resolve("Alice")
	_, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-1", "admin")
	s.Require().NoError(err)

	_, err = s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-2", "admin")
	s.ErrorIs(err, model.ErrAlreadyLinked)
}

func (s *ServiceSuite) TestLinkDeletedGuest() {
	guest := s.resolve("Alice")
	_, err := s.svc.SoftDelete(s.ctx, guest.ID, "admin")
	s.Require().NoError(err)

	_, err = s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-1", "admin")
	s.ErrorIs(err, model.ErrIdentityDeleted)
}

func (s *ServiceSuite) TestUnlinkRestoresGuest() {
	guest := s.resolve("Alice-Laptop")

	user := &model.User{ID: "user-1", Username: "Alice"}
	claim, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	s.saveGame(model.CollectionTableGames, &model.GameRecord{
		ID: "g1",
		Players: []model.PlayerEntry{
			{Name: "Alice-Laptop", IdentityID: guest.ID, Score: 3},
		},
		WinnerIdentityID: guest.ID,
	})

	link, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, user.ID, "admin")
	s.Require().NoError(err)
	s.Equal(1, link.GamesUpdated)

	result, err := s.svc.UnlinkGuestFromUser(s.ctx, guest.ID, user.ID, "admin")
	s.Require().NoError(err)
	s.Equal(1, result.GamesUpdated)

	s.Equal(model.StatusActive, result.Guest.Status)
	s.Equal(model.KindGuest, result.Guest.Kind)
	s.Empty(result.Guest.MergedInto)
	s.False(result.User.HasAlias("alice-laptop"))
	s.Nil(result.User.FindLinkedIdentity(guest.ID))

	// Game references are back on the guest with the marker cleared
	game, err := s.store.GetGame(s.ctx, model.CollectionTableGames, "g1")
	s.Require().NoError(err)
	s.Equal(guest.ID, game.Players[0].IdentityID)
	s.Empty(game.Players[0].PreviousIdentityID)
	s.Equal(guest.ID, game.WinnerIdentityID)

	// The name resolves to the guest again
	s.Equal(guest.ID, s.resolve("alice-laptop").ID)
	s.Equal(claim.Identity.ID, s.resolve("alice").ID)
}

func (s *ServiceSuite) TestUnlinkAfterLinkCreatedIdentity() {
	s.Require().NoError(s.store.CreateUser(s.ctx, &model.User{ID: "user-1", Username: "Alice"}))

	guest := s.resolve("Ally")
	link, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-1", "admin")
	s.Require().NoError(err)
	s.Equal("ally", link.User.NormalizedName)

	result, err := s.svc.UnlinkGuestFromUser(s.ctx, guest.ID, "user-1", "admin")
	s.Require().NoError(err)

	// The guest takes its name back; the user identity falls back to the
	// account username with the handover recorded in its history
	s.Equal(model.StatusActive, result.Guest.Status)
	s.Equal("ally", result.Guest.NormalizedName)
	s.Equal("Alice", result.User.DisplayName)
	s.Equal("alice", result.User.NormalizedName)
	s.Require().Len(result.User.NameHistory, 1)
	s.Equal("ally", result.User.NameHistory[0].NormalizedName)

	s.Equal(guest.ID, s.resolve("ally").ID)
	s.Equal(result.User.ID, s.resolve("alice").ID)
}

func (s *ServiceSuite) TestUnlinkNameFallbackTaken() {
	s.Require().NoError(s.store.CreateUser(s.ctx, &model.User{ID: "user-1", Username: "Alice"}))

	guest := s.resolve("Ally")
	_, err := s.svc.LinkGuestToUser(s.ctx, guest.ID, "user-1", "admin")
	s.Require().NoError(err)

	// The account username gets taken while the link is in place
	other := s.resolve("Alice")

	_, err = s.svc.UnlinkGuestFromUser(s.ctx, guest.ID, "user-1", "admin")
	s.ErrorIs(err, model.ErrNameInUse)

	// The link stays in place and nobody lost a name
	s.Equal(other.ID, s.resolve("alice").ID)
	linked, err := s.svc.Get(s.ctx, guest.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusLinked, linked.Status)
}

func (s *ServiceSuite) TestUnlinkNotLinked() {
	guest := s.resolve("Alice-Laptop")

	user := &model.User{ID: "user-1", Username: "Alice"}
	_, err := s.svc.ClaimOnRegistration(s.ctx, user)
	s.Require().NoError(err)

	_, err = s.svc.UnlinkGuestFromUser(s.ctx, guest.ID, user.ID, "admin")
	s.ErrorIs(err, model.ErrNotLinked)
}
