package tests_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-labs/amp-hsm/tests"
)

func TestGetUniqueContext(t *testing.T) {
	t.Parallel()

	ctx := tests.GetUniqueContext(t)

	id, ok := tests.GetTestID(ctx)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(id, "test-"))

	name, ok := tests.GetTestName(ctx)
	require.True(t, ok)
	assert.Equal(t, t.Name(), name)

	// Two contexts from the same test still get distinct ids.
	otherID, ok := tests.GetTestID(tests.GetUniqueContext(t))
	require.True(t, ok)
	assert.NotEqual(t, id, otherID)
}

func TestGetTestInfo(t *testing.T) {
	t.Parallel()

	info, ok := tests.GetTestInfo(tests.GetUniqueContext(t))
	require.True(t, ok)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, t.Name(), info.Name)

	_, ok = tests.GetTestInfo(context.Background())
	assert.False(t, ok)
}
