package api

import "errors"

// Error kinds the HTTP layer maps to status codes. Handlers match these with
// errors.Is; anything unmatched is treated as a store/internal fault.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrForbidden       = errors.New("not authorized to access this resource")
	ErrNotFound        = errors.New("resource not found")
	ErrValidation      = errors.New("validation failed")
	ErrEmailTaken      = errors.New("email already in use")
)
