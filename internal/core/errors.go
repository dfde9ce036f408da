package core

import "errors"

// Error kinds shared by the store, the services and the HTTP layer.
// Anything that is none of these (and not a *ValidationError) is treated as internal.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)

// ValidationError reports input that failed a shape, length or format constraint.
// It is returned before any mutation is attempted.
type ValidationError struct {
	// Field is the input field at fault (for example "title").
	Field string

	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Invalid is shorthand for constructing a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
