// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// service package to distinguish between different failure scenarios
// without inspecting driver errors.
package repository

import "errors"

var (
	// ErrEventNotFound is returned when no events row matches the given ID.
	ErrEventNotFound = errors.New("event not found")
	// ErrSwapNotFound is returned when no swap_requests row matches the given ID.
	ErrSwapNotFound = errors.New("swap not found")
	// ErrUserNotFound is returned when no users row matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
	ErrEmailExists = errors.New("email already exists")
	// ErrConflict is returned when an optimistic version check fails, i.e. the
	// row was written by someone else between read and write.
	ErrConflict = errors.New("conflict")
)
