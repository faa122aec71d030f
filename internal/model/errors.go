package model

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEvent is returned for events that fail basic validation.
	ErrInvalidEvent = errors.New("invalid event")
)
