package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scorekeep/scorekeep/internal/api/handler"
	"github.com/scorekeep/scorekeep/internal/api/middleware"
	"github.com/scorekeep/scorekeep/internal/services/account"
	"github.com/scorekeep/scorekeep/internal/services/games"
	"github.com/scorekeep/scorekeep/internal/services/identity"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	IdentityService *identity.Service
	GameService     *games.Service
	AccountService  *account.Service
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	identityHandler := handler.NewIdentityHandler(cfg.IdentityService)
	gameHandler := handler.NewGameHandler(cfg.GameService)
	accountHandler := handler.NewAccountHandler(cfg.AccountService)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Identity routes
	api.HandleFunc("/identities", identityHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/identities/resolve", identityHandler.Resolve).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}", identityHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/identities/{id}", identityHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/identities/{id}/restore", identityHandler.Restore).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/rename", identityHandler.Rename).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/aliases", identityHandler.AddAlias).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/aliases/{alias}", identityHandler.RemoveAlias).Methods(http.MethodDelete)
	api.HandleFunc("/identities/{id}/merge", identityHandler.Merge).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/split", identityHandler.Split).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/link", identityHandler.Link).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/unlink", identityHandler.Unlink).Methods(http.MethodPost)
	api.HandleFunc("/identities/{id}/stats/recompute", gameHandler.RecomputeStats).Methods(http.MethodPost)

	// Game routes
	api.HandleFunc("/collections/{collection}/games", gameHandler.Record).Methods(http.MethodPost)
	api.HandleFunc("/collections/{collection}/games", gameHandler.ListForIdentity).Methods(http.MethodGet)
	api.HandleFunc("/collections/{collection}/games/{id}", gameHandler.Get).Methods(http.MethodGet)

	// User routes
	api.HandleFunc("/users/register", accountHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", accountHandler.Get).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
