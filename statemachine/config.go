package statemachine

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	hsmerrors "github.com/amp-labs/amp-hsm/errors"
)

// State kind names used in configuration files.
const (
	ConfigKindInterior = "interior"
	ConfigKindLeaf     = "leaf"
)

// ConfigLoader is an interface for loading configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

// defaultConfigLoader is the global config loader used by LoadConfig.
// Applications can set this to provide embedded configs.
//
//nolint:gochecknoglobals // Process-wide loader registration point
var defaultConfigLoader ConfigLoader

// SetConfigLoader sets the default config loader for name-based loading.
// This allows applications to provide embedded configs or custom loading logic.
func SetConfigLoader(loader ConfigLoader) {
	defaultConfigLoader = loader
}

// Config declares a state tree: a named machine, its root, and the
// states beneath it. Handler fields carry registry names resolved by
// BuildTree, so configs stay data and code stays registered in one
// place.
type Config struct {
	Name   string        `json:"name"   yaml:"name"`
	Root   RootConfig    `json:"root"   yaml:"root"`
	States []StateConfig `json:"states" yaml:"states"`
}

// RootConfig declares the root state.
type RootConfig struct {
	Name     string         `json:"name"     yaml:"name"`
	Handlers HandlersConfig `json:"handlers" yaml:"handlers"`
	Initial  string         `json:"initial"  yaml:"initial"`
}

// StateConfig declares one non-root state.
type StateConfig struct {
	Name     string         `json:"name"     yaml:"name"`
	Parent   string         `json:"parent"   yaml:"parent"`
	Kind     string         `json:"kind"     yaml:"kind"` // "interior" or "leaf"
	Handlers HandlersConfig `json:"handlers" yaml:"handlers"`
	Initial  string         `json:"initial"  yaml:"initial"`
}

// HandlersConfig names the registered handlers of one state. Empty
// fields mean no handler.
type HandlersConfig struct {
	OnMessage string `json:"onMessage" yaml:"onMessage"`
	OnEnter   string `json:"onEnter"   yaml:"onEnter"`
	OnExit    string `json:"onExit"    yaml:"onExit"`
}

// LoadConfig loads a state machine configuration by path or name.
// Supports two modes:
//   - Path mode: Pass a file path (containing '/', '\', or ending in '.yaml') to load from filesystem
//     Example: LoadConfig("examples/turnstile.yaml"), LoadConfig("testdata/config.yaml")
//   - Name mode: Pass a bare name to load via the registered ConfigLoader
//     Example: LoadConfig("turnstile")
//
// For name mode to work, you must call SetConfigLoader() first with an implementation.
func LoadConfig(pathOrName string) (*Config, error) {
	// Path detection: if input contains path separators or .yaml extension, treat as path
	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(strings.ToLower(pathOrName), ".yaml")

	if isPath {
		// Direct filesystem read for arbitrary paths (tests, CLI tools, examples)
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			// Fail fast - don't fallback for explicit paths
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	// Bare name mode: use registered config loader
	if defaultConfigLoader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := defaultConfigLoader.LoadByName(pathOrName)
	if err != nil {
		available := defaultConfigLoader.ListAvailable()

		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, available, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a state machine configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from an embedded filesystem.
// This is a convenience function for loading from embed.FS.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks the configuration and reports every problem it finds,
// joined into one error.
func (c *Config) Validate() error {
	col := &hsmerrors.Collection{}

	if c.Name == "" {
		col.Add(ErrConfigNameRequired)
	}

	if c.Root.Name == "" {
		col.Add(ErrConfigRootRequired)
	}

	// Kind by name, for parent checks. The root behaves like an interior.
	kinds := map[string]string{}
	if c.Root.Name != "" {
		kinds[c.Root.Name] = ConfigKindInterior
	}

	for i, state := range c.States {
		if state.Name == "" {
			col.Add(fmt.Errorf("state %d: %w", i, ErrConfigStateNameRequired))

			continue
		}

		if _, dup := kinds[state.Name]; dup {
			col.Add(fmt.Errorf("%w: %q", ErrConfigDuplicateState, state.Name))

			continue
		}

		switch state.Kind {
		case ConfigKindInterior, ConfigKindLeaf:
			kinds[state.Name] = state.Kind
		default:
			col.Add(fmt.Errorf("state %q: %w: %q", state.Name, ErrConfigInvalidKind, state.Kind))
		}

		if state.Kind == ConfigKindLeaf && state.Initial != "" {
			col.Add(fmt.Errorf("state %q: %w", state.Name, ErrConfigLeafInitial))
		}

		if state.Parent == "" {
			col.Add(fmt.Errorf("state %q: %w", state.Name, ErrConfigParentRequired))
		}
	}

	// Parent references, once every declared name is known.
	for _, state := range c.States {
		if state.Name == "" || state.Parent == "" {
			continue
		}

		kind, known := kinds[state.Parent]
		if !known {
			col.Add(fmt.Errorf("state %q: %w: %q", state.Name, ErrConfigUnknownParent, state.Parent))

			continue
		}

		if kind == ConfigKindLeaf {
			col.Add(fmt.Errorf("state %q: %w: %q", state.Name, ErrConfigLeafParent, state.Parent))
		}
	}

	return col.GetError()
}

// BuildTree assembles a Tree from a validated config, resolving handler
// names through the registry. Caller options are applied after the
// config's name, so WithName in opts wins.
func BuildTree[M, D any](cfg *Config, registry *HandlerRegistry[M, D], opts ...TreeOption) (Tree[M, D], error) {
	if cfg == nil {
		return Tree[M, D]{}, ErrNilConfig
	}

	err := cfg.Validate()
	if err != nil {
		return Tree[M, D]{}, err
	}

	rootHandlers, err := registry.resolveHandlers(cfg.Root.Handlers)
	if err != nil {
		return Tree[M, D]{}, fmt.Errorf("root %q: %w", cfg.Root.Name, err)
	}

	rootInitial, err := registry.initial(cfg.Root.Initial)
	if err != nil {
		return Tree[M, D]{}, fmt.Errorf("root %q: %w", cfg.Root.Name, err)
	}

	tree, err := NewTree(
		StateID(cfg.Root.Name),
		rootHandlers,
		rootInitial,
		append([]TreeOption{WithName(cfg.Name)}, opts...)...,
	)
	if err != nil {
		return Tree[M, D]{}, err
	}

	// States may reference parents declared later, so add in passes
	// until none fit. A pass without progress means the remaining
	// parents reference each other.
	pending := cfg.States

	for len(pending) > 0 {
		var remaining []StateConfig

		for _, sc := range pending {
			if !tree.Contains(StateID(sc.Parent)) {
				remaining = append(remaining, sc)

				continue
			}

			tree, err = addConfigState(tree, registry, sc)
			if err != nil {
				return Tree[M, D]{}, err
			}
		}

		if len(remaining) == len(pending) {
			names := make([]string, 0, len(remaining))
			for _, sc := range remaining {
				names = append(names, sc.Name)
			}

			return Tree[M, D]{}, fmt.Errorf("%w: %v", ErrConfigParentCycle, names)
		}

		pending = remaining
	}

	return tree, nil
}

func addConfigState[M, D any](
	tree Tree[M, D],
	registry *HandlerRegistry[M, D],
	sc StateConfig,
) (Tree[M, D], error) {
	handlers, err := registry.resolveHandlers(sc.Handlers)
	if err != nil {
		return Tree[M, D]{}, fmt.Errorf("state %q: %w", sc.Name, err)
	}

	if sc.Kind == ConfigKindInterior {
		initial, err := registry.initial(sc.Initial)
		if err != nil {
			return Tree[M, D]{}, fmt.Errorf("state %q: %w", sc.Name, err)
		}

		return tree.AddInterior(StateID(sc.Name), StateID(sc.Parent), handlers, initial)
	}

	return tree.AddLeaf(StateID(sc.Name), StateID(sc.Parent), handlers)
}
