// Package service implements the swap lifecycle engine and the
// ownership-scoped event lifecycle on top of the repository layer.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/slotswap/internal/repository"
)

// Error kinds.  Every error returned by this package that is caused by the
// caller wraps exactly one of these; anything else is an internal failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrInvalidState = errors.New("invalid state transition")
)

// Error pairs an error kind with the message shown to API clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, msg string) error { return &Error{Kind: kind, Msg: msg} }

// IsClientError reports whether err was caused by the caller rather than by
// the store or another dependency.
func IsClientError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// translate maps repository sentinels met inside an operation to service
// errors; other errors pass through untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrEventNotFound):
		return fail(ErrNotFound, "Event not found")
	case errors.Is(err, repository.ErrSwapNotFound):
		return fail(ErrNotFound, "Swap not found")
	case errors.Is(err, repository.ErrConflict):
		return fail(ErrInvalidState, "Event was modified concurrently, retry")
	}
	return err
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
