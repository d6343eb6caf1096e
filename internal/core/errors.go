package core

import "errors"

// Error taxonomy shared by every store implementation and the HTTP layer.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAccess           = errors.New("access denied")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Field-level validation causes.
var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCategory     = errors.New("unknown category")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrEmptyPasswordHash   = errors.New("empty password hash")
	ErrEmptyPatch          = errors.New("no fields to update")
	ErrUsernameUnavailable = errors.New("username already taken")
)

// ValidationError names the offending field. It matches ErrValidation and its cause under errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
