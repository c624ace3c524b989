package domain

import "errors"

// Sentinel errors crossed between the Domain Service and the router.
// Infrastructure wraps these with context; the router checks errors.Is
// and maps them to typed error results. A raw error never reaches a
// client.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
)
