package visualizer

import "github.com/amp-labs/amp-hsm/statemachine"

// Options configures the visualization output.
type Options struct {
	// Direction controls diagram flow: "TB" (top-bottom), "LR"
	// (left-right), "BT" or "RL"
	Direction string

	// Title renders a diagram title in front matter when non-empty
	Title string

	// Highlight marks one state, typically a machine's current state
	Highlight statemachine.StateID

	// ShowInitial draws the entry marker into the root state
	ShowInitial bool
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		Direction:   "TB",
		ShowInitial: true,
	}
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithTitle sets the diagram title.
func (o Options) WithTitle(title string) Options {
	o.Title = title

	return o
}

// WithHighlight marks a state as the current one.
func (o Options) WithHighlight(state statemachine.StateID) Options {
	o.Highlight = state

	return o
}

// WithShowInitial enables/disables the entry marker.
func (o Options) WithShowInitial(show bool) Options {
	o.ShowInitial = show

	return o
}
