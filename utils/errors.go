package utils

import (
	"github.com/pkg/errors"
)

// ErrStagePanicked is the error carried by a Future whose stage panicked.
var ErrStagePanicked = errors.New("asynchronous stage panicked")

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewConfigValidationFieldRequiredError is used when a required config field is missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return errors.Errorf("%s: %q is required", path, field)
}
