package adapter

import (
	"errors"
	"fmt"
)

// constructionError is fatal: the adapter cannot be built.
type constructionError struct {
	task string
	err  error
}

func (e constructionError) Error() string {
	return fmt.Sprintf("construct %s adapter: %v", e.task, e.err)
}

func (e constructionError) Unwrap() error { return e.err }

// IsConstruction reports whether err is a fatal construction failure.
func IsConstruction(err error) bool {
	var e constructionError
	return errors.As(err, &e)
}

// invalidInputError is recoverable: the call had bad or missing input.
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

// ErrInvalidInput constructs a recoverable input error.
func ErrInvalidInput(format string, args ...any) error {
	return invalidInputError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err indicates missing or invalid input.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}
