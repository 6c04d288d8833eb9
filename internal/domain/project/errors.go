package project

import "errors"

var (
	// ErrProjectNotFound indicates the project isn't in the local list.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
)
