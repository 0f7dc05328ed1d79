package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/fitsocial/followgraph/internal/relation"
)

// Application error codes, one per error kind
const (
	ErrServerError       = -32000
	ErrUnauthenticated   = -32001
	ErrForbidden         = -32003
	ErrNotFound          = -32004
	ErrAlreadyExists     = -32009
	ErrSelfReference     = -32010
	ErrInvalidTransition = -32011
	ErrStoreUnavailable  = -32503
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// classify maps err to its JSON-RPC code and message. exposeData reports
// whether err's text is safe to return to the caller
func classify(err error) (code int, message string, exposeData bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, false
	}

	switch {
	case errors.Is(err, relation.ErrNotFound):
		return ErrNotFound, "Not found", true
	case errors.Is(err, relation.ErrAlreadyExists):
		return ErrAlreadyExists, "Already exists", true
	case errors.Is(err, relation.ErrSelfReference):
		return ErrSelfReference, "Self reference", true
	case errors.Is(err, relation.ErrInvalidTransition):
		return ErrInvalidTransition, "Invalid transition", true
	case errors.Is(err, relation.ErrUnauthenticated):
		return ErrUnauthenticated, "Unauthenticated", false
	case errors.Is(err, relation.ErrForbidden):
		return ErrForbidden, "Forbidden", false
	case errors.Is(err, relation.ErrInvalidArgument):
		return ErrInvalidParams, "Invalid params", true
	case errors.Is(err, relation.ErrStore),
		errors.Is(err, context.DeadlineExceeded):
		return ErrStoreUnavailable, "Store unavailable", false
	}
	return ErrServerError, "Server error", false
}
