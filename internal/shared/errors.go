package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a bad or missing input field.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates an I/O failure on the store or backup medium.
	ErrStorage = errors.New("storage failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an absent product id or backup slot.
type NotFoundError struct {
	Kind string
	ID   string
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps the I/O cause of a failed store or backup operation.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage in addition to the wrapped cause.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
