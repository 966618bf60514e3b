package inference

import (
	"errors"
	"fmt"
)

// unknownModelError signals a model identifier the backend cannot resolve.
type unknownModelError struct {
	backend string
	id      string
}

func (e unknownModelError) Error() string {
	return fmt.Sprintf("%s: unknown model %q", e.backend, e.id)
}

// ErrUnknownModel constructs an unknownModelError.
func ErrUnknownModel(backend, id string) error { return unknownModelError{backend: backend, id: id} }

// IsUnknownModel reports whether err indicates an unresolvable model id.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

// missingDependencyError signals that a model needs an optional dependency
// the backend does not provide.
type missingDependencyError struct {
	model string
	dep   string
}

func (e missingDependencyError) Error() string {
	return fmt.Sprintf("model %s requires %q which is not available", e.model, e.dep)
}

// ErrMissingDependency constructs a missingDependencyError.
func ErrMissingDependency(model, dep string) error {
	return missingDependencyError{model: model, dep: dep}
}

// IsMissingDependency reports whether err indicates a missing optional dependency.
func IsMissingDependency(err error) bool {
	var e missingDependencyError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a runtime that was not built in or
// cannot be reached at all (e.g. llama support without the build tag).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// unsupportedKindError signals a backend that cannot serve a Kind.
type unsupportedKindError struct {
	backend string
	kind    Kind
}

func (e unsupportedKindError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.backend, e.kind)
}

// ErrUnsupportedKind constructs an unsupportedKindError.
func ErrUnsupportedKind(backend string, kind Kind) error {
	return unsupportedKindError{backend: backend, kind: kind}
}

// IsUnsupportedKind reports whether err indicates an unsupported Kind.
func IsUnsupportedKind(err error) bool {
	var e unsupportedKindError
	return errors.As(err, &e)
}

// checkRequires fails with ErrMissingDependency for the first requirement of
// ref not present in provided.
func checkRequires(ref ModelRef, provided ...string) error {
	for _, req := range ref.Requires {
		found := false
		for _, p := range provided {
			if p == req {
				found = true
				break
			}
		}
		if !found {
			return ErrMissingDependency(ref.ID, req)
		}
	}
	return nil
}
