package users

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPrimaryEmail is returned when the primary email id matches no address
	ErrNoPrimaryEmail = errors.New("no primary email found")
	// ErrMissingID is returned when an event carries no user id
	ErrMissingID = errors.New("no user id found")
	// ErrNotFound is returned by stores when no user has the requested id
	ErrNotFound = errors.New("user not found")
	// ErrStorage matches every StorageError
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a failure of the underlying store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s user: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage so callers can map every store failure at once.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
