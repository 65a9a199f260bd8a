package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound      = errors.New("property not found")
	ErrInvalidRecord = errors.New("invalid property record")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrInvalidFilter = errors.New("invalid search filter")
)
