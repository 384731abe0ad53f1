package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to create a record
	// with a key that already exists. Create never overwrites.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned by guarded writes when the stored record
	// moved underneath the caller (version or status mismatch).
	ErrConflict = errors.New("conflict: record changed concurrently")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
