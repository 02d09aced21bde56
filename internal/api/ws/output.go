package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/session"
)

// Publisher fans live events out to observer connections. Nil-able; the
// memory store satisfies it when Redis is configured.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Output serializes runtime events onto one duplex connection, one message
// per event, in production order. Bound to a single connection.
type Output struct {
	transport Transport
	session   *session.Session // nil when memory is disabled
	publisher Publisher        // nil when no observer fan-out is configured
	channel   string

	stopped atomic.Bool
}

// NewOutput creates an output adapter over a transport. channel names the
// pub/sub channel live events are mirrored to; ignored when publisher is nil.
func NewOutput(transport Transport, sess *session.Session, publisher Publisher, channel string) *Output {
	return &Output{
		transport: transport,
		session:   sess,
		publisher: publisher,
		channel:   channel,
	}
}

// Start satisfies bidi.Sink.
func (out *Output) Start(_ *bidi.Agent) {}

// Stop marks the adapter terminal. Idempotent.
func (out *Output) Stop() {
	out.stopped.Store(true)
}

// Emit sends one event to the client. A write failure marks the adapter
// stopped and propagates to the runtime loop.
func (out *Output) Emit(ctx context.Context, event bidi.OutputEvent) error {
	if out.stopped.Load() {
		return fmt.Errorf("ws.Output.Emit: %w", bidi.ErrEndOfStream)
	}

	msg := encodeEvent(event)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ws.Output.Emit: %w", err)
	}

	if err := out.transport.WriteMessage(ctx, data); err != nil {
		out.stopped.Store(true)
		return fmt.Errorf("ws.Output.Emit: %w", err)
	}

	out.record(ctx, event)
	out.mirror(ctx, event, data)
	return nil
}

// encodeEvent maps one event variant to its outbound message: a type
// discriminator plus the variant's fields.
func encodeEvent(event bidi.OutputEvent) map[string]any {
	switch ev := event.(type) {
	case bidi.ConnectionStart:
		return map[string]any{"type": "connection_start"}
	case bidi.ConnectionClose:
		return map[string]any{"type": "connection_close"}
	case bidi.ResponseStart:
		return map[string]any{"type": "response_start"}
	case bidi.ResponseComplete:
		return map[string]any{"type": "response_complete", "stop_reason": ev.StopReason}
	case bidi.Transcript:
		return map[string]any{
			"type":  "transcript",
			"text":  ev.Text,
			"role":  string(ev.Role),
			"final": ev.Final,
		}
	case bidi.AudioDelta:
		return map[string]any{
			"type":        "audio",
			"audio":       base64.StdEncoding.EncodeToString(ev.Data),
			"format":      string(ev.Format),
			"sample_rate": ev.SampleRate,
			"channels":    ev.Channels,
		}
	case bidi.ToolUse:
		return map[string]any{
			"type":    "tool_use",
			"call_id": ev.CallID,
			"tool":    ev.Tool,
			"input":   json.RawMessage(ev.Input),
			"content": ev.Content,
		}
	case bidi.ErrorEvent:
		return map[string]any{"type": "error", "message": ev.Message}
	default:
		return map[string]any{"type": "unknown"}
	}
}

// record persists the conversational events worth remembering. Final
// transcripts and tool-use notices reach the memory store; deltas and
// lifecycle markers do not.
func (out *Output) record(ctx context.Context, event bidi.OutputEvent) {
	if out.session == nil {
		return
	}

	var err error
	switch ev := event.(type) {
	case bidi.Transcript:
		if !ev.Final {
			return
		}
		if ev.Role == bidi.RoleUser {
			err = out.session.RecordUserInput(ctx, "", ev.Text)
		} else {
			err = out.session.RecordAgentResponse(ctx, "", ev.Text)
		}
	case bidi.ToolUse:
		err = out.session.RecordToolUse(ctx, ev.Tool, ev.Content)
	default:
		return
	}

	if err != nil {
		log.Warn().Err(err).Str("session_id", out.session.ID()).Msg("recording output event failed")
	}
}

// mirror republishes live events to the session channel for observers.
func (out *Output) mirror(ctx context.Context, event bidi.OutputEvent, data []byte) {
	if out.publisher == nil {
		return
	}

	switch ev := event.(type) {
	case bidi.Transcript:
		if !ev.Final {
			return
		}
	case bidi.ToolUse, bidi.ResponseComplete, bidi.ErrorEvent:
	default:
		return
	}

	if err := out.publisher.Publish(ctx, out.channel, data); err != nil {
		log.Warn().Err(err).Str("channel", out.channel).Msg("publishing live event failed")
	}
}
