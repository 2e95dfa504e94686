package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/account"
	"github.com/scorekeep/scorekeep/internal/services/games"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
	"github.com/scorekeep/scorekeep/internal/storage"
	"github.com/scorekeep/scorekeep/internal/storage/memory"
	redisstorage "github.com/scorekeep/scorekeep/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDGen idgen.Generator

	// Services
	Propagator      *propagation.Propagator
	OutboxWorker    *propagation.Worker
	IdentityService *identity.Service
	GameService     *games.Service
	AccountService  *account.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	gen := idgen.New()

	return newWithDependencies(store, clk, gen, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, gen idgen.Generator, logger *slog.Logger) *App {
	// Collections are built first so the propagator can be handed every
	// game collection the identity service must keep consistent
	collections := make([]propagation.Collection, 0, len(model.Collections()))
	for _, name := range model.Collections() {
		collections = append(collections, games.NewCollection(name, store, clk))
	}

	propagator := propagation.New(store, clk, gen, logger, collections...)
	outboxWorker := propagation.NewWorker(store, propagator, logger)
	identityService := identity.New(store, propagator, clk, gen, logger)
	gameService := games.New(store, identityService, clk, gen, logger)
	accountService := account.New(store, identityService, clk, gen, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		IDGen:           gen,
		Propagator:      propagator,
		OutboxWorker:    outboxWorker,
		IdentityService: identityService,
		GameService:     gameService,
		AccountService:  accountService,
	}
}
