// Package common defines shared constants, sentinel errors and small helpers
// used across chronovault layers. Callers should use errors.Is / errors.As to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors. Every one of them is reported before any
	// cryptographic work starts.
	ErrValidation              = errors.New("validation error")
	ErrInvalidPassphraseFormat = errors.New("invalid passphrase format")
	ErrNoFiles                 = errors.New("no files selected")
	ErrUnlockNotInFuture       = errors.New("unlock instant must be in the future")
	ErrInvalidFileName         = errors.New("invalid file name")
	ErrDuplicateFile           = errors.New("duplicate file name")
	ErrInvalidCapsuleID        = errors.New("invalid capsule id")

	// Archive structure errors.
	ErrCorruptArchive  = errors.New("corrupt archive")
	ErrMissingMetadata = errors.New("missing metadata entry")
	ErrEntryNotFound   = errors.New("entry not found")

	// Cryptographic errors.
	ErrDecryptionFailure = errors.New("decryption failure")

	// Lifecycle errors.
	ErrRegistryMiss = errors.New("capsule not found in registry")
	ErrLocked       = errors.New("capsule is locked")
)

// ValidationError carries the offending input field. It matches both
// ErrValidation and the specific sentinel in Err.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// NewValidationError is a shorthand for &ValidationError{Field: field, Err: err}.
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// EntryError ties an archive-level failure to a single archive entry.
type EntryError struct {
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %q: %v", e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
