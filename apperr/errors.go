// Package apperr defines the error taxonomy shared by the stores, the authenticator and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks an upload rejected by name or content checks.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidName is a validation error for a filename or stored identifier.
	ErrInvalidName = fmt.Errorf("%w: invalid name", ErrValidation)
	// ErrInvalidContent is a validation error for bytes that are not a playable audio file.
	ErrInvalidContent = fmt.Errorf("%w: invalid content", ErrValidation)

	// ErrConflict is returned when a unique record already exists.
	ErrConflict = errors.New("already exists")
	// ErrNotFound is returned for unknown users and files.
	ErrNotFound = errors.New("not found")

	// ErrAuth is the parent of every authentication failure.
	ErrAuth = errors.New("authentication failed")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuth)
	// ErrTokenInvalid covers malformed, forged, revoked and orphaned tokens.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrAuth)
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrAuth)
)

// StorageError reports a filesystem failure while storing or removing an upload.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError, or returns nil when err is nil.
func Storage(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

// IsStorage reports whether err is or wraps a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
