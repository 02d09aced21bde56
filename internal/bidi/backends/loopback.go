// Package backends provides the built-in model backends: a loopback model
// for local development and tests, and a realtime backend that bridges to a
// managed speech service over WebSocket.
package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gosuda/vona/internal/bidi"
)

// ErrSessionClosed is returned when sending on a closed model session.
var ErrSessionClosed = errors.New("backends: session closed") //nolint:gochecknoglobals // sentinel error

// calculatePrefix triggers a calculator tool round-trip on the loopback
// model, so tool dispatch is exercisable without an upstream service.
const calculatePrefix = "calculate "

// NewLoopback creates the in-process development model. It echoes text turns
// back as final transcripts and acknowledges audio without recognition.
func NewLoopback(_ bidi.BackendOptions) (bidi.Model, error) {
	return &Loopback{}, nil
}

// Loopback is a bidi.Model that needs no upstream connection.
type Loopback struct{}

func (l *Loopback) Connect(_ context.Context, cfg bidi.ModelConfig) (bidi.ModelSession, error) {
	s := &loopbackSession{
		cfg:    cfg,
		events: make(chan bidi.OutputEvent, 64),
		done:   make(chan struct{}),
	}
	s.events <- bidi.ConnectionStart{}
	return s, nil
}

type loopbackSession struct {
	cfg bidi.ModelConfig

	calls   atomic.Int64
	audioIn atomic.Int64 // decoded audio bytes received this conversation

	events    chan bidi.OutputEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *loopbackSession) Events() <-chan bidi.OutputEvent { return s.events }

func (s *loopbackSession) Send(ctx context.Context, event bidi.InputEvent) error {
	switch ev := event.(type) {
	case bidi.TextInput:
		return s.handleText(ctx, ev.Text)
	case bidi.AudioInput:
		s.audioIn.Add(int64(len(ev.Data)))
		return nil
	default:
		return fmt.Errorf("backends.loopback: unsupported input event %T", event)
	}
}

func (s *loopbackSession) handleText(ctx context.Context, text string) error {
	if err := s.emit(ctx, bidi.ResponseStart{}); err != nil {
		return err
	}
	if err := s.emit(ctx, bidi.Transcript{Text: text, Role: bidi.RoleUser, Final: true}); err != nil {
		return err
	}

	if expr, ok := strings.CutPrefix(text, calculatePrefix); ok {
		callID := fmt.Sprintf("call-%d", s.calls.Add(1))

		input, err := json.Marshal(map[string]string{"expression": expr})
		if err != nil {
			return fmt.Errorf("backends.loopback: %w", err)
		}
		return s.emit(ctx, bidi.ToolUse{CallID: callID, Tool: "calculator", Input: input, Content: expr})
	}

	reply := bidi.Transcript{Text: text, Role: bidi.RoleAssistant, Final: true}
	if err := s.emit(ctx, reply); err != nil {
		return err
	}
	return s.emit(ctx, bidi.ResponseComplete{StopReason: "end_turn"})
}

func (s *loopbackSession) SendToolResult(ctx context.Context, _ string, result string) error {
	reply := bidi.Transcript{Text: result, Role: bidi.RoleAssistant, Final: true}
	if err := s.emit(ctx, reply); err != nil {
		return err
	}
	return s.emit(ctx, bidi.ResponseComplete{StopReason: "tool_result"})
}

// Close ends the conversation. The events channel stays open; consumers stop
// on the terminal ConnectionClose event.
func (s *loopbackSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		select {
		case s.events <- bidi.ConnectionClose{}:
		default:
		}
	})
	return nil
}

// emit queues one event unless the session is closed or ctx is done.
func (s *loopbackSession) emit(ctx context.Context, ev bidi.OutputEvent) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
