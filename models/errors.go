package models

import "errors"

// ValidationError is a local input problem. It never reaches the network and does not
// change the workflow step.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

var (
	ErrSizeNotPositive = NewValidationError("Land size must be positive.")
	ErrMissingFields   = NewValidationError("Please fill in all fields.")
)
