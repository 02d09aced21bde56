package bidi

import (
	"context"
)

// ModelConfig carries per-session model settings.
type ModelConfig struct {
	ModelID          string
	Voice            string
	SystemPrompt     string
	InputSampleRate  int
	OutputSampleRate int
}

// Model is a bi-directional speech model reachable over some transport.
// Connect opens one conversation; each duplex client connection gets its
// own ModelSession.
type Model interface {
	Connect(ctx context.Context, cfg ModelConfig) (ModelSession, error)
}

// ModelSession is one live conversation with the model. Events must be
// drained until the channel closes; Close releases the underlying
// connection and causes the channel to close.
type ModelSession interface {
	// Send forwards one input turn to the model.
	Send(ctx context.Context, event InputEvent) error

	// SendToolResult returns the result of a tool invocation the model
	// requested via a ToolUse event.
	SendToolResult(ctx context.Context, callID, result string) error

	// Events yields model output in production order. The channel closes
	// when the model connection ends.
	Events() <-chan OutputEvent

	Close() error
}
