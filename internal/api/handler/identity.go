package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/scorekeep/scorekeep/internal/api/request"
	"github.com/scorekeep/scorekeep/internal/api/response"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/identity"
)

// IdentityHandler handles identity-related endpoints
type IdentityHandler struct {
	identityService *identity.Service
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *identity.Service) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
	}
}

// Resolve handles POST /api/v1/identities/resolve
func (h *IdentityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req request.ResolveIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	opts := identity.ResolveOptions{CreatedBy: actor(r)}
	if req.Kind != "" {
		kind := model.IdentityKind(req.Kind)
		if kind != model.KindGuest && kind != model.KindUser {
			WriteError(w, NewInvalidRequestError("kind must be guest or user"))
			return
		}
		opts.Kind = kind
	}

	id, err := h.identityService.Resolve(r.Context(), req.Name, opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

// Get handles GET /api/v1/identities/{id}
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.identityService.Get(r.Context(), pathIdentityID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

// Search handles GET /api/v1/identities
func (h *IdentityHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := identity.SearchOptions{
		Kind:           model.IdentityKind(q.Get("kind")),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}
	if v := q.Get("claimed"); v != "" {
		claimed := v == "true"
		opts.Claimed = &claimed
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, NewInvalidRequestError("offset must be a non-negative integer"))
			return
		}
		opts.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		opts.Limit = n
	}

	result, err := h.identityService.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.SearchResponse{
		Identities: make([]response.Identity, 0, len(result.Identities)),
		Total:      result.Total,
	}
	for _, id := range result.Identities {
		resp.Identities = append(resp.Identities, response.IdentityFromModel(id))
	}

	response.JSON(w, http.StatusOK, resp)
}

// Rename handles POST /api/v1/identities/{id}/rename
func (h *IdentityHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req request.RenameIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.NewName == "" {
		WriteError(w, NewInvalidRequestError("new_name is required"))
		return
	}

	id, err := h.identityService.Rename(r.Context(), pathIdentityID(r), req.NewName, actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

// AddAlias handles POST /api/v1/identities/{id}/aliases
func (h *IdentityHandler) AddAlias(w http.ResponseWriter, r *http.Request) {
	var req request.AddAliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Alias == "" {
		WriteError(w, NewInvalidRequestError("alias is required"))
		return
	}

	id, err := h.identityService.AddAlias(r.Context(), pathIdentityID(r), req.Alias, actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

// RemoveAlias handles DELETE /api/v1/identities/{id}/aliases/{alias}
func (h *IdentityHandler) RemoveAlias(w http.ResponseWriter, r *http.Request) {
	alias := mux.Vars(r)["alias"]

	id, err := h.identityService.RemoveAlias(r.Context(), pathIdentityID(r), alias, actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

// Merge handles POST /api/v1/identities/{id}/merge
func (h *IdentityHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req request.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if len(req.SourceIDs) == 0 {
		WriteError(w, NewInvalidRequestError("source_ids is required"))
		return
	}

	sourceIDs := make([]model.IdentityID, 0, len(req.SourceIDs))
	for _, s := range req.SourceIDs {
		sourceIDs = append(sourceIDs, model.IdentityID(s))
	}

	result, err := h.identityService.Merge(r.Context(), pathIdentityID(r), sourceIDs, actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MergeResponseFromResult(result))
}

// Split handles POST /api/v1/identities/{id}/split
func (h *IdentityHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req request.SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Alias == "" {
		WriteError(w, NewInvalidRequestError("alias is required"))
		return
	}

	sourceID := pathIdentityID(r)
	split, err := h.identityService.Split(r.Context(), sourceID, req.Alias, actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	source, err := h.identityService.Get(r.Context(), sourceID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SplitResponse{
		Source: response.IdentityFromModel(source),
		Split:  response.IdentityFromModel(split),
	})
}

// Link handles POST /api/v1/identities/{id}/link
func (h *IdentityHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req request.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.UserID == "" {
		WriteError(w, NewInvalidRequestError("user_id is required"))
		return
	}

	result, err := h.identityService.LinkGuestToUser(r.Context(), pathIdentityID(r), model.UserID(req.UserID), actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LinkResponse{
		Guest:       response.IdentityFromModel(result.Guest),
		User:        response.IdentityFromModel(result.User),
		Propagation: response.PropagationFromResults(result.Collections),
	})
}

// Unlink handles POST /api/v1/identities/{id}/unlink
func (h *IdentityHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	var req request.UnlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.UserID == "" {
		WriteError(w, NewInvalidRequestError("user_id is required"))
		return
	}

	result, err := h.identityService.UnlinkGuestFromUser(r.Context(), pathIdentityID(r), model.UserID(req.UserID), actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LinkResponse{
		Guest:       response.IdentityFromModel(result.Guest),
		User:        response.IdentityFromModel(result.User),
		Propagation: response.PropagationFromResults(result.Collections),
	})
}

// Delete handles DELETE /api/v1/identities/{id}
func (h *IdentityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.identityService.SoftDelete(r.Context(), pathIdentityID(r), actor(r)); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Restore handles POST /api/v1/identities/{id}/restore
func (h *IdentityHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := h.identityService.Restore(r.Context(), pathIdentityID(r), actor(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentityFromModel(id))
}

func pathIdentityID(r *http.Request) model.IdentityID {
	return model.IdentityID(mux.Vars(r)["id"])
}

// actor names the request principal for audit fields. There is no
// authentication layer, so the caller self-identifies via header.
func actor(r *http.Request) string {
	if v := r.Header.Get("X-Actor"); v != "" {
		return v
	}
	return "api"
}
