// Package storage holds what the wall and execution stores share
package storage

import "errors"

var (
	// ErrNotFound is returned when a wall does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord is returned when a stored row cannot be decoded.
	ErrInvalidRecord = errors.New("invalid stored record")

	// ErrInvalidInput is returned when a nil or incomplete value is saved.
	ErrInvalidInput = errors.New("invalid input")
)
