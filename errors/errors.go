// Package errors carries error-accumulation helpers shared across the
// module.
package errors

import "errors"

// Collection accumulates errors across a multi-step check so callers
// see every problem at once instead of fixing them one at a time. Not
// safe for concurrent use.
type Collection struct {
	errors []error
}

// Add appends err to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError reports whether the collection holds at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// GetError flattens the collection: nil when empty, the error itself
// when there is exactly one, errors.Join otherwise. errors.Is and
// errors.As see through the join either way.
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
