// Package contexts carries small context.Context helpers: nil-tolerant
// defaulting and type-safe value passing.
package contexts

import "context"

// EnsureContext returns the first non-nil context, or a fresh background
// context when every argument is nil.
func EnsureContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

// WithValue stores value under key, creating a background context when
// ctx is nil. The typed key keeps callers from colliding on bare
// strings.
func WithValue[K comparable, V any](ctx context.Context, key K, value V) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, key, value)
}

// GetValue reads the value stored under key, reporting false when ctx
// is nil, the key is absent, or the stored value has a different type.
func GetValue[K comparable, V any](ctx context.Context, key K) (V, bool) { //nolint:ireturn
	var zeroVal V

	if ctx == nil {
		return zeroVal, false
	}

	val := ctx.Value(key)
	if val == nil {
		return zeroVal, false
	}

	v, ok := val.(V)
	if !ok {
		return zeroVal, false
	}

	return v, true
}
