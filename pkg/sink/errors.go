package sink

import (
	"errors"
	"fmt"
)

// ErrStorage matches every *StorageError through errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports a failed sink operation.
type StorageError struct {
	// Op is the failed step, e.g. "create table" or "insert".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
