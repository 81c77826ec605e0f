package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrNotClaimed is returned by MarkProcessing when the task could not be
	// claimed because it is no longer pending. This happens when another
	// worker claimed it first or the task already finished.
	ErrNotClaimed = errors.New("task not claimed")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested analysis task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: analysis task", ErrNotFound)

	// ErrResultNotFound indicates that the requested analysis result does not exist.
	ErrResultNotFound = fmt.Errorf("%w: analysis result", ErrNotFound)

	// ErrLessonNotFound indicates that the referenced lesson does not exist.
	ErrLessonNotFound = fmt.Errorf("%w: lesson", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
