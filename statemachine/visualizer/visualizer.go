// Package visualizer generates Mermaid state diagrams from state trees
// and their configurations. Composite states render as nested blocks, so
// the hierarchy a machine bubbles messages through is visible at a
// glance.
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-hsm/statemachine"
)

// Visualizer errors.
var (
	ErrConfigNil = errors.New("config cannot be nil")
	ErrEmptyTree = errors.New("tree has no states")
)

// GenerateMermaid converts a Tree to a Mermaid state diagram.
func GenerateMermaid[M, D any](tree statemachine.Tree[M, D]) (string, error) {
	return GenerateMermaidWithOptions(tree, DefaultOptions())
}

// GenerateMermaidWithOptions generates a Tree diagram with custom options.
func GenerateMermaidWithOptions[M, D any](tree statemachine.Tree[M, D], opts Options) (string, error) {
	if tree.Len() == 0 {
		return "", ErrEmptyTree
	}

	nodes := make(map[statemachine.StateID]*node)

	for s := range tree.States() {
		nodes[s.ID()] = &node{
			id:        s.ID(),
			composite: s.Kind() != statemachine.KindLeaf,
		}
	}

	for s := range tree.States() {
		parentID, ok := s.Parent()
		if !ok {
			continue
		}

		parent := nodes[parentID]
		parent.children = append(parent.children, nodes[s.ID()])
	}

	return render(nodes[tree.RootID()], opts), nil
}

// GenerateMermaidFromConfig converts a Config to a Mermaid state diagram.
// Unlike the Tree variants it needs no registered handlers, so it suits
// documentation pipelines that only see YAML.
func GenerateMermaidFromConfig(config *statemachine.Config) (string, error) {
	return GenerateMermaidFromConfigWithOptions(config, DefaultOptions())
}

// GenerateMermaidFromConfigWithOptions generates a Config diagram with
// custom options.
func GenerateMermaidFromConfigWithOptions(config *statemachine.Config, opts Options) (string, error) {
	if config == nil {
		return "", ErrConfigNil
	}

	err := config.Validate()
	if err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}

	rootID := statemachine.StateID(config.Root.Name)
	nodes := map[statemachine.StateID]*node{
		rootID: {id: rootID, composite: true},
	}

	for _, sc := range config.States {
		nodes[statemachine.StateID(sc.Name)] = &node{
			id:        statemachine.StateID(sc.Name),
			composite: sc.Kind == statemachine.ConfigKindInterior,
		}
	}

	for _, sc := range config.States {
		parent := nodes[statemachine.StateID(sc.Parent)]
		parent.children = append(parent.children, nodes[statemachine.StateID(sc.Name)])
	}

	return render(nodes[rootID], opts), nil
}

// GenerateMermaidFromFile loads a config and generates a Mermaid diagram.
// The argument is a path or a registered config name, as in LoadConfig.
func GenerateMermaidFromFile(pathOrName string) (string, error) {
	config, err := statemachine.LoadConfig(pathOrName)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return GenerateMermaidFromConfig(config)
}

// node is the rendering model shared by the Tree and Config entry points.
type node struct {
	id        statemachine.StateID
	composite bool
	children  []*node
}

func render(root *node, opts Options) string {
	var sb strings.Builder

	// Header
	sb.WriteString("```mermaid\n")

	if opts.Title != "" {
		sb.WriteString(fmt.Sprintf("---\ntitle: %s\n---\n", opts.Title))
	}

	sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		sb.WriteString(fmt.Sprintf("    direction %s\n", opts.Direction))
	}

	// Initial state marker
	if opts.ShowInitial {
		sb.WriteString(fmt.Sprintf("    [*] --> %s\n", root.id))
	}

	renderNode(&sb, root, 1)

	if opts.Highlight != "" {
		sb.WriteString(fmt.Sprintf("    class %s highlighted\n", opts.Highlight))
		sb.WriteString("\n")
		sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
	}

	sb.WriteString("```\n")

	return sb.String()
}

func renderNode(sb *strings.Builder, n *node, depth int) {
	indent := strings.Repeat("    ", depth)

	if !n.composite || len(n.children) == 0 {
		sb.WriteString(fmt.Sprintf("%s%s\n", indent, n.id))

		return
	}

	// Deterministic output regardless of map iteration order.
	slices.SortFunc(n.children, func(a, b *node) int {
		return strings.Compare(string(a.id), string(b.id))
	})

	sb.WriteString(fmt.Sprintf("%sstate %s {\n", indent, n.id))

	for _, child := range n.children {
		renderNode(sb, child, depth+1)
	}

	sb.WriteString(fmt.Sprintf("%s}\n", indent))
}
