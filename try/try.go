// Package try carries a value together with the error that produced it,
// so results can travel over channels and callbacks as a single unit.
package try

// Try holds either a computed value or the error that prevented it.
type Try[T any] struct {
	Value T
	Error error
}

// Success wraps a value in a successful Try.
func Success[T any](value T) Try[T] {
	return Try[T]{Value: value}
}

// Failure wraps an error in a failed Try.
func Failure[T any](err error) Try[T] {
	var zero T

	return Try[T]{Value: zero, Error: err}
}

// FromResult converts a conventional (value, error) pair into a Try.
func FromResult[T any](value T, err error) Try[T] {
	if err != nil {
		return Failure[T](err)
	}

	return Success(value)
}

func (t Try[T]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[T]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the Try into a conventional (value, error) pair.
// A failed Try yields the zero value of T.
func (t Try[T]) Get() (T, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero T

		return zero, t.Error
	}

	return t.Value, nil
}

// GetOrElse returns the value of a successful Try, or defaultValue otherwise.
func (t Try[T]) GetOrElse(defaultValue T) T { //nolint:ireturn
	if t.IsFailure() {
		return defaultValue
	}

	return t.Value
}

// Map applies f to the value of a successful Try.
// Failures pass through unchanged.
func Map[T, U any](t Try[T], f func(T) (U, error)) Try[U] {
	if t.IsFailure() {
		return Failure[U](t.Error)
	}

	return FromResult(f(t.Value))
}
