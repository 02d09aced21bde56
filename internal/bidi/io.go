package bidi

import (
	"context"
	"errors"
)

// ErrEndOfStream is returned by a Source once no further input will ever be
// available (client disconnect or an explicit Stop), and by adapters whose
// terminal state has been reached. It is the expected, clean termination
// signal for the agent loop.
var ErrEndOfStream = errors.New("bidi: end of stream") //nolint:gochecknoglobals // sentinel error

// Source supplies input turns to an Agent. Implementations are bound to one
// duplex connection and are not safe for concurrent Read calls.
type Source interface {
	// Start attaches the source to its owning agent. It performs no
	// observable state change beyond bookkeeping.
	Start(agent *Agent)

	// Read blocks until the next input turn arrives. It returns
	// ErrEndOfStream once the transport has disconnected or the source
	// has been stopped; any other error is fatal for the connection.
	Read(ctx context.Context) (InputEvent, error)

	// Stop marks the source terminal. Idempotent. It does not interrupt
	// an in-flight Read but guarantees every subsequent Read fails with
	// ErrEndOfStream.
	Stop()
}

// Sink receives output events from an Agent and delivers them, in order,
// to the client. One Emit call performs exactly one serialize-and-send.
type Sink interface {
	// Start attaches the sink to its owning agent.
	Start(agent *Agent)

	// Emit sends one event. A transport failure propagates to the caller,
	// which decides whether to terminate the connection.
	Emit(ctx context.Context, event OutputEvent) error

	// Stop marks the sink terminal. Idempotent.
	Stop()
}
