package contexts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tagKey struct{}

func TestEnsureContext(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), tagKey{}, "tagged")

	assert.Equal(t, ctx, EnsureContext(ctx))
	assert.Equal(t, ctx, EnsureContext(nil, ctx))
	assert.Equal(t, context.Background(), EnsureContext())
	assert.Equal(t, context.Background(), EnsureContext(nil, nil))
}

func TestWithValue(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), tagKey{}, 42)

	got, ok := GetValue[tagKey, int](ctx, tagKey{})
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	// A nil parent still yields a usable context.
	fromNil := WithValue(nil, tagKey{}, "present")

	str, ok := GetValue[tagKey, string](fromNil, tagKey{})
	assert.True(t, ok)
	assert.Equal(t, "present", str)
}

func TestGetValue(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), tagKey{}, "present")

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, ok := GetValue[string, string](ctx, "other")
		assert.False(t, ok)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		_, ok := GetValue[tagKey, int](ctx, tagKey{})
		assert.False(t, ok)
	})

	t.Run("nil context", func(t *testing.T) {
		t.Parallel()

		_, ok := GetValue[tagKey, string](nil, tagKey{})
		assert.False(t, ok)
	})
}
