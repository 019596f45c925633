package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a caller omits required data
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists is returned when a create targets an existing record
	ErrAlreadyExists = errors.New("already exists")
)
