package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scorekeep/scorekeep/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidName       = "INVALID_NAME"
	CodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	CodeIdentityMerged    = "IDENTITY_MERGED"
	CodeIdentityDeleted   = "IDENTITY_DELETED"
	CodeNameInUse         = "NAME_IN_USE"
	CodeUserHasIdentity   = "USER_HAS_IDENTITY"
	CodeAliasNotFound     = "ALIAS_NOT_FOUND"
	CodeCannotMergeSelf   = "CANNOT_MERGE_SELF"
	CodeAlreadyLinked     = "ALREADY_LINKED"
	CodeNotLinked         = "NOT_LINKED"
	CodeNotGuestIdentity  = "NOT_GUEST_IDENTITY"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeUsernameExists    = "USERNAME_EXISTS"
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeUnknownCollection = "UNKNOWN_COLLECTION"
	CodeNoPlayers         = "NO_PLAYERS"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrIdentityNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeIdentityNotFound, "Identity not found"}}
	case errors.Is(err, model.ErrIdentityMerged):
		return &httpError{http.StatusConflict, APIError{CodeIdentityMerged, "Identity has been merged into another identity"}}
	case errors.Is(err, model.ErrIdentityDeleted):
		return &httpError{http.StatusConflict, APIError{CodeIdentityDeleted, "Identity has been deleted"}}
	case errors.Is(err, model.ErrInvalidName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidName, "Name must not be empty"}}
	case errors.Is(err, model.ErrNameInUse):
		return &httpError{http.StatusConflict, APIError{CodeNameInUse, "Name is already in use by another identity"}}
	case errors.Is(err, model.ErrUserHasIdentity):
		return &httpError{http.StatusConflict, APIError{CodeUserHasIdentity, "User already has an identity"}}
	case errors.Is(err, model.ErrAliasNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAliasNotFound, "Alias not found on identity"}}
	case errors.Is(err, model.ErrCannotMergeSelf):
		return &httpError{http.StatusBadRequest, APIError{CodeCannotMergeSelf, "Cannot merge an identity into itself"}}
	case errors.Is(err, model.ErrAlreadyLinked):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyLinked, "Identity is already linked"}}
	case errors.Is(err, model.ErrNotLinked):
		return &httpError{http.StatusConflict, APIError{CodeNotLinked, "Identity is not linked to this user"}}
	case errors.Is(err, model.ErrNotGuestIdentity):
		return &httpError{http.StatusConflict, APIError{CodeNotGuestIdentity, "Identity is not an unclaimed guest"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrUnknownCollection):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownCollection, "Unknown game collection"}}
	case errors.Is(err, model.ErrNoPlayers):
		return &httpError{http.StatusBadRequest, APIError{CodeNoPlayers, "A game needs at least one player"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
