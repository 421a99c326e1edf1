package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrStoreUnavailable marks infrastructure failures (database or
	// revocation store unreachable). Never folded into ErrUnauthorized.
	ErrStoreUnavailable = errors.New("store unavailable")
)
