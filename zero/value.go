// Package zero names the zero value of a generic type parameter.
package zero

// Value returns the zero value for type T. Handy in generic code that
// must return something alongside an error or a false ok flag.
func Value[T any]() T { //nolint:ireturn
	var zeroVal T

	return zeroVal
}
