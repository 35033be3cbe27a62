package statemachine

import (
	"context"
	"log/slog"
	"time"
)

// Logger receives execution events from the engine. Implementations must
// be safe for concurrent use when the tree is shared between machines.
type Logger interface {
	MachineStarted(ctx context.Context, machine string, state StateID)
	MessageProcessed(ctx context.Context, machine string, outcome string, duration time.Duration, err error)
	StateEntered(ctx context.Context, machine string, state StateID)
	StateExited(ctx context.Context, machine string, state StateID)
	TransitionExecuted(ctx context.Context, machine string, from, to StateID)
	MachineStopped(ctx context.Context, machine string, from StateID, reason string)
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger backed by slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewLogger(slog.Default())
}

// NewLogger creates a logger backed by the given slog logger.
func NewLogger(logger *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) MachineStarted(ctx context.Context, machine string, state StateID) {
	l.logger.InfoContext(ctx, "Machine started",
		"machine", machine,
		"state", string(state),
	)
}

func (l *DefaultLogger) MessageProcessed(
	ctx context.Context,
	machine string,
	outcome string,
	duration time.Duration,
	err error,
) {
	fields := []any{
		"machine", machine,
		"outcome", outcome,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		l.logger.ErrorContext(ctx, "Message processing failed", append(fields, "error", err)...)

		return
	}

	l.logger.InfoContext(ctx, "Message processed", fields...)
}

func (l *DefaultLogger) StateEntered(ctx context.Context, machine string, state StateID) {
	l.logger.DebugContext(ctx, "State entered",
		"machine", machine,
		"state", string(state),
	)
}

func (l *DefaultLogger) StateExited(ctx context.Context, machine string, state StateID) {
	l.logger.DebugContext(ctx, "State exited",
		"machine", machine,
		"state", string(state),
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine string, from, to StateID) {
	l.logger.InfoContext(ctx, "Transition executed",
		"machine", machine,
		"from", string(from),
		"to", string(to),
	)
}

func (l *DefaultLogger) MachineStopped(ctx context.Context, machine string, from StateID, reason string) {
	l.logger.InfoContext(ctx, "Machine stopped",
		"machine", machine,
		"from", string(from),
		"reason", reason,
	)
}

// NopLogger discards every event. It is the default for trees built
// without WithLogger.
type NopLogger struct{}

func (NopLogger) MachineStarted(context.Context, string, StateID) {}
func (NopLogger) MessageProcessed(context.Context, string, string, time.Duration, error) {
}
func (NopLogger) StateEntered(context.Context, string, StateID)       {}
func (NopLogger) StateExited(context.Context, string, StateID)        {}
func (NopLogger) TransitionExecuted(context.Context, string, StateID, StateID) {
}
func (NopLogger) MachineStopped(context.Context, string, StateID, string) {}
