package remote

import "errors"

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrUnknownCollection is returned for a collection name outside the schema
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUnknownField is returned when a filter, order or write names a column the collection lacks
	ErrUnknownField = errors.New("unknown field")

	// ErrConflict is returned when a unique constraint rejects a write
	ErrConflict = errors.New("conflict")

	// ErrForeignKeyViolation is returned when a write references a missing parent
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput is returned when a value can't be coerced to its column kind
	ErrInvalidInput = errors.New("invalid input")
)
