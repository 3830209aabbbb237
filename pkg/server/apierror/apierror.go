// Package apierror maps internal failures onto the HTTP error surface.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/voxstudy/voxstudy/pkg/server/breaker"
	"github.com/voxstudy/voxstudy/pkg/store"
)

type Type string

const (
	TypeInvalidRequest Type = "invalid_request_error"
	TypeNotFound       Type = "not_found_error"
	TypeRateLimit      Type = "rate_limit_error"
	TypeUnavailable    Type = "unavailable_error"
	TypeTimeout        Type = "timeout_error"
	TypeInternal       Type = "api_error"
)

// Error is the canonical client-facing failure. Message must be safe to
// return to callers.
type Error struct {
	Type    Type
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

// FromError classifies err and picks the response status. The caller's
// message is kept unless the failure mode dictates its own; internal detail
// never leaks to the client.
func FromError(err error, message string) (*Error, int) {
	switch {
	case err == nil:
		return nil, http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Type: TypeTimeout, Message: "Request timed out"}, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return &Error{Type: TypeTimeout, Message: "Request cancelled"}, http.StatusRequestTimeout
	case errors.Is(err, breaker.ErrOpen):
		return &Error{Type: TypeUnavailable, Message: message}, http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		return &Error{Type: TypeNotFound, Message: message}, http.StatusNotFound
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, StatusOf(apiErr.Type)
	}

	return &Error{Type: TypeInternal, Message: message}, http.StatusInternalServerError
}

// StatusOf maps an error type to its HTTP status.
func StatusOf(t Type) int {
	switch t {
	case TypeInvalidRequest:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
