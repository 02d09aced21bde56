package bidi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ToolRunner executes tool invocations requested by the model.
type ToolRunner interface {
	Run(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// Agent drives one conversation: it pumps input turns from a Source into a
// ModelSession and drains model output into a Sink, in order. One Agent
// serves exactly one connection; it owns no state shared across connections.
type Agent struct {
	session ModelSession
	tools   ToolRunner // nil when no tools are registered
}

// New creates an Agent bound to a live model session.
func New(session ModelSession, tools ToolRunner) *Agent {
	return &Agent{session: session, tools: tools}
}

// Run executes the conversation loop until the source reaches end of stream,
// the model session ends, the sink fails, or ctx is cancelled. End of stream
// and a closed model session are clean terminations; everything else is
// returned to the caller.
func (a *Agent) Run(ctx context.Context, src Source, sink Sink) error {
	src.Start(a)
	sink.Start(a)
	defer src.Stop()
	defer sink.Stop()
	defer func() {
		if err := a.session.Close(); err != nil {
			log.Debug().Err(err).Msg("bidi: model session close")
		}
	}()

	// Input pump: reads turns and forwards them to the model. The read
	// blocks until one message arrives or the transport closes, so the
	// pump halts on its own once the source reaches end of stream.
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := src.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			if err := a.session.Send(ctx, ev); err != nil {
				readErr <- fmt.Errorf("bidi.Agent.Run: send turn: %w", err)
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if errors.Is(err, ErrEndOfStream) {
				log.Debug().Msg("bidi: input stream ended")
				return nil
			}
			return err

		case ev, ok := <-a.session.Events():
			if !ok {
				log.Debug().Msg("bidi: model session ended")
				return nil
			}

			if err := sink.Emit(ctx, ev); err != nil {
				return fmt.Errorf("bidi.Agent.Run: emit: %w", err)
			}

			if tu, isTool := ev.(ToolUse); isTool {
				if err := a.dispatchTool(ctx, tu); err != nil {
					return err
				}
			}

			if _, closed := ev.(ConnectionClose); closed {
				return nil
			}
		}
	}
}

// dispatchTool runs a requested tool and feeds the result back to the model.
// Tool failures are reported to the model as an error payload rather than
// terminating the conversation.
func (a *Agent) dispatchTool(ctx context.Context, tu ToolUse) error {
	if a.tools == nil {
		return a.session.SendToolResult(ctx, tu.CallID, `{"error":"no tools available"}`)
	}

	result, err := a.tools.Run(ctx, tu.Tool, tu.Input)
	if err != nil {
		log.Warn().Err(err).Str("tool", tu.Tool).Msg("bidi: tool failed")
		result = fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	if err := a.session.SendToolResult(ctx, tu.CallID, result); err != nil {
		return fmt.Errorf("bidi.Agent.dispatchTool(%q): %w", tu.Tool, err)
	}
	return nil
}
