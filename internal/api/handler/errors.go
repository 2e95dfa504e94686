package handler

import (
	"net/http"

	"github.com/scorekeep/scorekeep/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest    = apierr.CodeInvalidRequest
	CodeInvalidName       = apierr.CodeInvalidName
	CodeIdentityNotFound  = apierr.CodeIdentityNotFound
	CodeIdentityMerged    = apierr.CodeIdentityMerged
	CodeIdentityDeleted   = apierr.CodeIdentityDeleted
	CodeNameInUse         = apierr.CodeNameInUse
	CodeUserHasIdentity   = apierr.CodeUserHasIdentity
	CodeAliasNotFound     = apierr.CodeAliasNotFound
	CodeCannotMergeSelf   = apierr.CodeCannotMergeSelf
	CodeAlreadyLinked     = apierr.CodeAlreadyLinked
	CodeNotLinked         = apierr.CodeNotLinked
	CodeNotGuestIdentity  = apierr.CodeNotGuestIdentity
	CodeUserNotFound      = apierr.CodeUserNotFound
	CodeUsernameExists    = apierr.CodeUsernameExists
	CodeGameNotFound      = apierr.CodeGameNotFound
	CodeUnknownCollection = apierr.CodeUnknownCollection
	CodeNoPlayers         = apierr.CodeNoPlayers
	CodeInternalError     = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return apierr.NewInternalError()
}
