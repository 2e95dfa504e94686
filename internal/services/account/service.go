package account

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Service registers user accounts. Registration is what triggers the
// identity claim workflow: a new user immediately picks up the guest
// identity (and alias matches) recorded under their username.
type Service struct {
	storage    storage.Storage
	identities *identity.Service
	clock      clock.Clock
	idgen      idgen.Generator
	logger     *slog.Logger
}

// New creates a new account Service
func New(
	store storage.Storage,
	identities *identity.Service,
	clk clock.Clock,
	gen idgen.Generator,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:    store,
		identities: identities,
		clock:      clk,
		idgen:      gen,
		logger:     logger,
	}
}

// RegisterResult is a newly-registered user plus what identity claiming
// did for them
type RegisterResult struct {
	User  *model.User
	Claim *identity.ClaimResult
}

// Register creates a user account and runs the registration claim.
// Username uniqueness is a conditional insert, so concurrent
// registrations for the same name cannot both succeed.
func (s *Service) Register(ctx context.Context, username, password string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	if model.Normalize(username) == "" {
		return nil, model.ErrInvalidName
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           model.UserID(s.idgen.NewID()),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	claim, err := s.identities.ClaimOnRegistration(ctx, user)
	if err != nil {
		// The account exists; surface the claim failure so an operator
		// can re-run it
		s.logger.Error("registration claim failed",
			slog.String("user_id", string(user.ID)),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", string(user.ID)),
		slog.String("identity_id", string(claim.Identity.ID)),
		slog.Bool("identity_created", claim.Created),
		slog.Int("alias_claims", len(claim.Claimed)),
	)

	return &RegisterResult{User: user, Claim: claim}, nil
}

// GetUser returns a user by ID
func (s *Service) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}
