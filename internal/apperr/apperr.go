// Package apperr holds the error kinds shared by the ledger and the catalog.
// The HTTP layer maps kinds to status codes; the message is shown to users as is.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// NotFound builds "<what> not found".
func NotFound(what string) error {
	return &Error{kind: ErrNotFound, msg: what + " not found"}
}

func InvalidState(msg string) error {
	return &Error{kind: ErrInvalidState, msg: msg}
}

func InvalidArgument(msg string) error {
	return &Error{kind: ErrInvalidArgument, msg: msg}
}

// Kind returns a short label for metrics and logs: not_found, invalid_state,
// invalid_argument, error, or ok for a nil error.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
