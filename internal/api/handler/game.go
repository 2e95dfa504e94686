package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/scorekeep/scorekeep/internal/api/request"
	"github.com/scorekeep/scorekeep/internal/api/response"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/games"
)

// GameHandler handles game recording and lookup endpoints
type GameHandler struct {
	gameService *games.Service
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameService *games.Service) *GameHandler {
	return &GameHandler{
		gameService: gameService,
	}
}

// Record handles POST /api/v1/collections/{collection}/games
func (h *GameHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req request.RecordGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	input := games.RecordGameInput{}
	for _, p := range req.Players {
		if p.Name == "" && p.IdentityID == "" {
			WriteError(w, NewInvalidRequestError("each player needs a name or an identity_id"))
			return
		}
		input.Players = append(input.Players, games.PlayerInput{
			Name:       p.Name,
			IdentityID: model.IdentityID(p.IdentityID),
			Score:      p.Score,
		})
	}
	if req.PlayedAt != "" {
		t, err := time.Parse(time.RFC3339, req.PlayedAt)
		if err != nil {
			WriteError(w, NewInvalidRequestError("played_at must be RFC 3339"))
			return
		}
		input.PlayedAt = t
	}

	game, err := h.gameService.RecordGame(r.Context(), mux.Vars(r)["collection"], input)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.GameFromModel(game))
}

// Get handles GET /api/v1/collections/{collection}/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	game, err := h.gameService.GetGame(r.Context(), vars["collection"], model.GameID(vars["id"]))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(game))
}

// ListForIdentity handles GET /api/v1/collections/{collection}/games listing
// by identity via the identity_id query parameter
func (h *GameHandler) ListForIdentity(w http.ResponseWriter, r *http.Request) {
	identityID := r.URL.Query().Get("identity_id")
	if identityID == "" {
		WriteError(w, NewInvalidRequestError("identity_id is required"))
		return
	}

	list, err := h.gameService.ListGamesForIdentity(r.Context(), mux.Vars(r)["collection"], model.IdentityID(identityID))
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.GameListResponse{Games: make([]response.Game, 0, len(list))}
	for _, g := range list {
		resp.Games = append(resp.Games, response.GameFromModel(g))
	}

	response.JSON(w, http.StatusOK, resp)
}

// RecomputeStats handles POST /api/v1/identities/{id}/stats/recompute
func (h *GameHandler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	id, err := h.gameService.RecomputeStats(r.Context(), model.IdentityID(mux.Vars(r)["id"]))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}
