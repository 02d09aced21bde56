// Package session resolves durable conversation sessions and records their
// lifecycle in the memory store. One session id may outlive many connections;
// each connection resolves (or creates) its session exactly once, before the
// agent loop attaches.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/memory"
)

// ErrMemoryDisabled is returned when session features are requested while the
// memory subsystem is not enabled. Callers surface it as service-unavailable,
// never as a silent downgrade.
var ErrMemoryDisabled = errors.New("session: memory feature disabled") //nolint:gochecknoglobals // sentinel error

// Store is the slice of the memory store the session layer needs.
type Store interface {
	StoreEvent(ctx context.Context, ev memory.Event) error
	Context(ctx context.Context, actorID string) (string, error)
}

// Manager resolves sessions against the memory store.
type Manager struct {
	store Store // nil when the memory feature is disabled
}

// NewManager creates a Manager. A nil store disables session features.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Enabled reports whether session features are available.
func (m *Manager) Enabled() bool {
	return m != nil && m.store != nil
}

// Resolve returns an initialized session. A supplied sessionID is reused as-is
// (callers presenting the same id reach the same persisted context); an empty
// id generates a fresh opaque one. Initialization runs exactly once per
// returned Session and its failure is fatal for the connection attempt.
func (m *Manager) Resolve(ctx context.Context, actorID, sessionID string) (*Session, error) {
	if !m.Enabled() {
		return nil, ErrMemoryDisabled
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s := &Session{
		id:      sessionID,
		actorID: actorID,
		store:   m.store,
	}

	if err := s.initialize(ctx); err != nil {
		return nil, fmt.Errorf("session.Manager.Resolve(%q): %w", sessionID, err)
	}

	return s, nil
}

// Session is one resolved conversation context. Not safe for concurrent use;
// each connection owns its own instance.
type Session struct {
	id      string
	actorID string
	store   Store

	context     string
	initialized bool
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// ActorID returns the owner of the session.
func (s *Session) ActorID() string { return s.actorID }

// Context returns the persisted conversation context loaded at
// initialization, for injection into the system prompt. May be empty.
func (s *Session) Context() string { return s.context }

// initialize loads persisted context and records the session start. It runs
// at most once per Session.
func (s *Session) initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	memCtx, err := s.store.Context(ctx, s.actorID)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}
	s.context = memCtx

	if err := s.store.StoreEvent(ctx, memory.Event{
		ActorID:   s.actorID,
		SessionID: s.id,
		Type:      memory.EventSessionStart,
		Payload:   map[string]any{"session_id": s.id},
	}); err != nil {
		return fmt.Errorf("record session start: %w", err)
	}

	s.initialized = true
	log.Info().Str("session_id", s.id).Str("actor_id", s.actorID).Msg("session initialized")
	return nil
}

// RecordUserInput stores one user turn. Either text or audioTranscript may be
// empty; a fully empty turn is ignored.
func (s *Session) RecordUserInput(ctx context.Context, text, audioTranscript string) error {
	return s.record(ctx, memory.EventUserInput, map[string]any{
		"text":             text,
		"audio_transcript": audioTranscript,
		"content":          firstNonEmpty(text, audioTranscript),
	})
}

// RecordAgentResponse stores one assistant turn.
func (s *Session) RecordAgentResponse(ctx context.Context, text, audioTranscript string) error {
	return s.record(ctx, memory.EventAgentResponse, map[string]any{
		"text":             text,
		"audio_transcript": audioTranscript,
		"content":          firstNonEmpty(text, audioTranscript),
	})
}

// RecordToolUse stores one tool invocation notice.
func (s *Session) RecordToolUse(ctx context.Context, tool, content string) error {
	return s.record(ctx, memory.EventToolUse, map[string]any{
		"tool_name": tool,
		"content":   content,
	})
}

// Finalize records the session end. The session itself is never destroyed
// here; persistence lifetime belongs to the memory store.
func (s *Session) Finalize(ctx context.Context) error {
	if err := s.record(ctx, memory.EventSessionEnd, map[string]any{"session_id": s.id}); err != nil {
		return err
	}
	log.Info().Str("session_id", s.id).Msg("session finalized")
	return nil
}

func (s *Session) record(ctx context.Context, evType memory.EventType, payload map[string]any) error {
	if content, ok := payload["content"].(string); ok && content == "" && evType != memory.EventSessionEnd {
		return nil
	}

	if err := s.store.StoreEvent(ctx, memory.Event{
		ActorID:   s.actorID,
		SessionID: s.id,
		Type:      evType,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("session.Session.record(%s): %w", evType, err)
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
