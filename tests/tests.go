// Package tests tags test contexts with unique identifiers so test
// activity can be told apart in logs, metrics, and handler assertions.
package tests

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/amp-labs/amp-hsm/contexts"
)

type contextKey string

const (
	testIDKey   contextKey = "testId"
	testNameKey contextKey = "testName"
)

// Info is the metadata GetUniqueContext stores.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetUniqueContext derives a context from t.Context() carrying the test
// name and a fresh uuid-based id.
func GetUniqueContext(t *testing.T) context.Context {
	t.Helper()

	ctx := contexts.WithValue(t.Context(), testIDKey, "test-"+uuid.New().String())

	return contexts.WithValue(ctx, testNameKey, t.Name())
}

// GetTestID returns the unique id stored by GetUniqueContext.
func GetTestID(ctx context.Context) (string, bool) {
	return contexts.GetValue[contextKey, string](ctx, testIDKey)
}

// GetTestName returns the test name stored by GetUniqueContext.
func GetTestName(ctx context.Context) (string, bool) {
	return contexts.GetValue[contextKey, string](ctx, testNameKey)
}

// GetTestInfo bundles the stored id and name. It reports false when
// neither is present.
func GetTestInfo(ctx context.Context) (Info, bool) {
	id, idOk := GetTestID(ctx)
	name, nameOk := GetTestName(ctx)

	if !idOk && !nameOk {
		return Info{}, false
	}

	return Info{ID: id, Name: name}, true
}
