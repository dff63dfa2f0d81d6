package directory

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("directory: not found")
	ErrConflict         = errors.New("directory: resource conflict")
	ErrAlreadyExists    = errors.New("directory: already exists")
	ErrCycleDetected    = errors.New("directory: group cycle detected")
	ErrHasChildren      = errors.New("directory: group has child groups")
	ErrStoreUnavailable = errors.New("directory: store unavailable")
	ErrInvalidInput     = errors.New("directory: invalid input")
)

// ConflictError is a uniqueness violation that names the colliding field
// (email, username, name). It matches ErrConflict under errors.Is.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("directory: %s already in use", e.Field)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
