package core

import "errors"

// ErrValidation is the marker for every domain validation failure. Individual
// sentinels and ad-hoc messages all match it through errors.Is, which lets
// callers (the import driver in particular) separate client rejections from
// infrastructure faults without inspecting messages.
var ErrValidation = errors.New("validation failed")

type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func (validationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a validation error with the given message.
func Invalid(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a domain validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
