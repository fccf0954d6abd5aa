// Package errors holds error helpers shared by the dispatch packages.
package errors

import (
	"errors"
	"fmt"
)

// ErrPanicRecovery marks an error that was produced by recovering a panic.
var ErrPanicRecovery = errors.New("recovered from panic")

// FromPanic converts a recovered panic value, and an optional stack trace,
// into an error wrapping ErrPanicRecovery. A nil value returns nil.
//
// If the recovered value is itself an error it stays reachable through
// errors.Is and errors.As.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	var err error

	if e, ok := recovered.(error); ok {
		err = fmt.Errorf("%w: %w", ErrPanicRecovery, e)
	} else {
		err = fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
	}

	if len(stack) == 0 {
		return err
	}

	return fmt.Errorf("%w\nstack trace:\n%s", err, string(stack))
}

// Collection accumulates errors from several operations and returns them together.
// It is not safe for concurrent use.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// GetError returns nil for an empty collection, the error itself when there
// is exactly one, and errors.Join of all of them otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
