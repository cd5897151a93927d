package store

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrTaskNotFound is returned when no row matches the requested id.
	ErrTaskNotFound = errors.New("task not found")
)

// StorageError reports a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("task store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err came from the database layer.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// isBusy matches SQLite lock contention, the only write failure worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
