package hub

import (
	"errors"
	"net/http"
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports an unknown hub, network, playlist or device.
type NotFoundError struct{ Msg string }

func (e *NotFoundError) Error() string { return e.Msg }

// ConflictError reports a duplicate identity, e.g. an already-taken hub code.
type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

// InvalidStateError reports an illegal lifecycle transition, e.g. approving
// a hub that is not pending.
type InvalidStateError struct{ Msg string }

func (e *InvalidStateError) Error() string { return e.Msg }

// StatusCode maps a domain error to its HTTP status. Unknown errors are
// treated as internal.
func StatusCode(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		state      *InvalidStateError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &state):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
