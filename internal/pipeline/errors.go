package pipeline

import (
	"github.com/juju/errors"

	"ghostwatch/pkg/domain"
)

// FatalError marks an error that must stop the engine instead of being
// retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError. Nil stays nil and already fatal errors
// are returned unchanged.
func Fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err must stop the engine. Domain invariant
// violations are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	return errors.As(err, &fe) || errors.Is(err, domain.ErrInvariant)
}
