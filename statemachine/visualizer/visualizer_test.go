package visualizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-labs/amp-hsm/statemachine"
)

func nestedConfig() *statemachine.Config {
	return &statemachine.Config{
		Name: "nested",
		Root: statemachine.RootConfig{Name: "root"},
		States: []statemachine.StateConfig{
			{Name: "a", Parent: "root", Kind: statemachine.ConfigKindInterior},
			{Name: "a1", Parent: "a", Kind: statemachine.ConfigKindLeaf},
			{Name: "a2", Parent: "a", Kind: statemachine.ConfigKindInterior},
			{Name: "a2a", Parent: "a2", Kind: statemachine.ConfigKindLeaf},
			{Name: "b", Parent: "root", Kind: statemachine.ConfigKindLeaf},
		},
	}
}

func nestedTree(t *testing.T) statemachine.Tree[string, int] {
	t.Helper()

	none := statemachine.Handlers[string, int]{}

	tree, err := statemachine.NewTreeBuilder("root", none, nil, statemachine.WithName("nested")).
		Interior("a", "root", none, nil).
		Leaf("a1", "a", none).
		Interior("a2", "a", none, nil).
		Leaf("a2a", "a2", none).
		Leaf("b", "root", none).
		Build()
	require.NoError(t, err)

	return tree
}

func TestGenerateMermaidFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("nested blocks", func(t *testing.T) {
		t.Parallel()

		diagram, err := GenerateMermaidFromConfig(nestedConfig())
		require.NoError(t, err)

		expected := "```mermaid\n" +
			"stateDiagram-v2\n" +
			"    direction TB\n" +
			"    [*] --> root\n" +
			"    state root {\n" +
			"        state a {\n" +
			"            a1\n" +
			"            state a2 {\n" +
			"                a2a\n" +
			"            }\n" +
			"        }\n" +
			"        b\n" +
			"    }\n" +
			"```\n"
		assert.Equal(t, expected, diagram)
	})

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()

		_, err := GenerateMermaidFromConfig(nil)
		require.ErrorIs(t, err, ErrConfigNil)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		_, err := GenerateMermaidFromConfig(&statemachine.Config{Name: "incomplete"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}

func TestGenerateMermaid(t *testing.T) {
	t.Parallel()

	t.Run("matches the config rendering", func(t *testing.T) {
		t.Parallel()

		fromTree, err := GenerateMermaid(nestedTree(t))
		require.NoError(t, err)

		fromConfig, err := GenerateMermaidFromConfig(nestedConfig())
		require.NoError(t, err)

		// Built by hand or declared in YAML, the same hierarchy renders
		// the same diagram.
		assert.Equal(t, fromConfig, fromTree)
	})

	t.Run("empty tree", func(t *testing.T) {
		t.Parallel()

		_, err := GenerateMermaid(statemachine.Tree[string, int]{})
		require.ErrorIs(t, err, ErrEmptyTree)
	})

	t.Run("interior without children renders plain", func(t *testing.T) {
		t.Parallel()

		none := statemachine.Handlers[string, int]{}

		tree, err := statemachine.NewTreeBuilder("root", none, nil).
			Interior("hollow", "root", none, nil).
			Build()
		require.NoError(t, err)

		diagram, err := GenerateMermaid(tree)
		require.NoError(t, err)

		assert.Contains(t, diagram, "        hollow\n")
		assert.NotContains(t, diagram, "state hollow {")
	})
}

func TestGenerateMermaidWithOptions(t *testing.T) {
	t.Parallel()

	t.Run("title and direction", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions().
			WithTitle("Nested Machine").
			WithDirection("LR")

		diagram, err := GenerateMermaidWithOptions(nestedTree(t), opts)
		require.NoError(t, err)

		assert.Contains(t, diagram, "---\ntitle: Nested Machine\n---\n")
		assert.Contains(t, diagram, "    direction LR\n")
	})

	t.Run("highlight", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions().WithHighlight("a2a")

		diagram, err := GenerateMermaidWithOptions(nestedTree(t), opts)
		require.NoError(t, err)

		assert.Contains(t, diagram, "    class a2a highlighted\n")
		assert.Contains(t, diagram, "classDef highlighted")
	})

	t.Run("without initial marker", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions().WithShowInitial(false)

		diagram, err := GenerateMermaidWithOptions(nestedTree(t), opts)
		require.NoError(t, err)

		assert.NotContains(t, diagram, "[*]")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		assert.Equal(t, "TB", opts.Direction)
		assert.True(t, opts.ShowInitial)
		assert.Empty(t, opts.Title)
		assert.Empty(t, opts.Highlight)
	})
}

func TestGenerateMermaidFromFile(t *testing.T) {
	t.Parallel()

	yaml := `
name: nested
root:
  name: root
states:
  - name: a
    parent: root
    kind: interior
  - name: a1
    parent: a
    kind: leaf
`

	path := filepath.Join(t.TempDir(), "nested.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	diagram, err := GenerateMermaidFromFile(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(diagram, "```mermaid\n"))
	assert.Contains(t, diagram, "state a {\n")
	assert.Contains(t, diagram, "a1\n")

	_, err = GenerateMermaidFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
