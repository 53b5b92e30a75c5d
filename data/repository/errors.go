package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")

	// ErrConflict means a commit-time precondition re-check failed: either a
	// concurrent transaction invalidated the balance/share preconditions, or
	// postgres reported a serialization failure. Callers may retry once.
	ErrConflict = errors.New("error concurrent modification conflict")
)
