package runner

import (
	"errors"
	"fmt"
)

// closedError signals a submission after Shutdown or a Do after Stop.
type closedError struct{ what string }

func (e closedError) Error() string { return e.what + " is closed" }

// IsClosed reports whether err indicates a stopped runner or loop.
func IsClosed(err error) bool {
	var e closedError
	return errors.As(err, &e)
}

var (
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed error = closedError{what: "runner"}

	errRunnerClosed = ErrClosed
	errLoopClosed   = closedError{what: "control loop"}
)

// panicError wraps a value recovered from a panicking adapter.
type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("adapter panic: %v", e.v) }

// IsPanic reports whether err was recovered from a panic inside Run.
func IsPanic(err error) bool {
	var e panicError
	return errors.As(err, &e)
}
