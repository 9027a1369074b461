package models

import "errors"

// Request outcome categories. Components wrap these with context using
// fmt.Errorf("%w: ...") and the HTTP layer maps them to status codes.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
