// Package memory persists conversation events and session context in Redis.
// It is the gateway's only cross-connection shared resource: sessions are
// addressed by opaque ids and may outlive any single connection.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session or record does not exist.
var ErrNotFound = errors.New("memory: not found") //nolint:gochecknoglobals // sentinel error

// EventType categorizes stored conversation events.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventUserInput     EventType = "user_input"
	EventAgentResponse EventType = "agent_response"
	EventToolUse       EventType = "tool_use"
	EventSessionEnd    EventType = "session_end"
)

// Event is one persisted conversation record.
type Event struct {
	ActorID   string         `json:"actor_id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SessionSummary describes one stored session for listing.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

// Store is the Redis-backed memory store. When a Sealer is configured,
// event payloads are encrypted at rest.
type Store struct {
	client *redis.Client
	sealer *Sealer
}

// New connects to Redis and verifies the connection. sealer may be nil.
func New(ctx context.Context, addr, password string, db int, sealer *Sealer) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("memory.New: ping: %w", err)
	}

	return &Store{client: client, sealer: sealer}, nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("memory.Store.Close: %w", err)
	}
	return nil
}

// StoreEvent appends one event to the session's log and maintains the
// per-actor session index and summary.
func (s *Store) StoreEvent(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("memory.Store.StoreEvent: marshal: %w", err)
	}

	record := string(data)
	if s.sealer != nil {
		record, err = s.sealer.Seal(record)
		if err != nil {
			return fmt.Errorf("memory.Store.StoreEvent: seal: %w", err)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, eventsKey(ev.ActorID, ev.SessionID), record)
	pipe.SAdd(ctx, sessionsKey(ev.ActorID), ev.SessionID)

	// The latest assistant utterance doubles as the session summary shown in
	// session listings.
	if ev.Type == EventAgentResponse {
		if content, ok := ev.Payload["content"].(string); ok && content != "" {
			pipe.HSet(ctx, summariesKey(ev.ActorID), ev.SessionID, content)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memory.Store.StoreEvent: %w", err)
	}
	return nil
}

// ListEvents returns up to limit most recent events of one session, oldest
// first. limit <= 0 returns the full log.
func (s *Store) ListEvents(ctx context.Context, actorID, sessionID string, limit int64) ([]Event, error) {
	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.client.LRange(ctx, eventsKey(actorID, sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory.Store.ListEvents: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, record := range raw {
		ev, err := s.decodeEvent(record)
		if err != nil {
			return nil, fmt.Errorf("memory.Store.ListEvents: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ListSessions returns summaries for every session of an actor.
func (s *Store) ListSessions(ctx context.Context, actorID string) ([]SessionSummary, error) {
	ids, err := s.client.SMembers(ctx, sessionsKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("memory.Store.ListSessions: %w", err)
	}

	summaries, err := s.client.HGetAll(ctx, summariesKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("memory.Store.ListSessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		summary := summaries[id]
		if summary == "" {
			summary = "No summary available"
		}
		out = append(out, SessionSummary{SessionID: id, Summary: summary})
	}
	return out, nil
}

// GetSession returns the summary for one session id.
func (s *Store) GetSession(ctx context.Context, actorID, sessionID string) (*SessionSummary, error) {
	known, err := s.client.SIsMember(ctx, sessionsKey(actorID), sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("memory.Store.GetSession: %w", err)
	}
	if !known {
		return nil, fmt.Errorf("memory.Store.GetSession(%q): %w", sessionID, ErrNotFound)
	}

	summary, err := s.client.HGet(ctx, summariesKey(actorID), sessionID).Result()
	if errors.Is(err, redis.Nil) {
		summary = "No summary available"
	} else if err != nil {
		return nil, fmt.Errorf("memory.Store.GetSession: %w", err)
	}

	return &SessionSummary{SessionID: sessionID, Summary: summary}, nil
}

// Preferences returns the actor's stored preference strings.
func (s *Store) Preferences(ctx context.Context, actorID string) ([]string, error) {
	prefs, err := s.client.LRange(ctx, preferencesKey(actorID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory.Store.Preferences: %w", err)
	}
	return prefs, nil
}

// AddPreference appends one preference string for an actor.
func (s *Store) AddPreference(ctx context.Context, actorID, preference string) error {
	if err := s.client.RPush(ctx, preferencesKey(actorID), preference).Err(); err != nil {
		return fmt.Errorf("memory.Store.AddPreference: %w", err)
	}
	return nil
}

// Context assembles the prompt context injected at session start:
// the actor's preferences plus summaries of recent conversations.
func (s *Store) Context(ctx context.Context, actorID string) (string, error) {
	prefs, err := s.Preferences(ctx, actorID)
	if err != nil {
		return "", fmt.Errorf("memory.Store.Context: %w", err)
	}

	sessions, err := s.ListSessions(ctx, actorID)
	if err != nil {
		return "", fmt.Errorf("memory.Store.Context: %w", err)
	}

	summaries := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Summary != "" && sess.Summary != "No summary available" {
			summaries = append(summaries, sess.Summary)
		}
	}

	return BuildContext(prefs, summaries), nil
}

// QueryFilter narrows a memory query.
type QueryFilter struct {
	SessionID string // empty: all sessions
	Type      EventType
	Contains  string // case-insensitive substring match on payload content
	TopK      int    // 0: default 5
}

// Query returns the most recent events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, actorID string, filter QueryFilter) ([]Event, error) {
	topK := filter.TopK
	if topK <= 0 {
		topK = 5
	}

	sessionIDs := []string{filter.SessionID}
	if filter.SessionID == "" {
		ids, err := s.client.SMembers(ctx, sessionsKey(actorID)).Result()
		if err != nil {
			return nil, fmt.Errorf("memory.Store.Query: %w", err)
		}
		sessionIDs = ids
	}

	var matched []Event
	for _, id := range sessionIDs {
		events, err := s.ListEvents(ctx, actorID, id, 0)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if filter.Type != "" && ev.Type != filter.Type {
				continue
			}
			if filter.Contains != "" && !payloadContains(ev.Payload, filter.Contains) {
				continue
			}
			matched = append(matched, ev)
		}
	}

	// Newest first, capped at topK.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	if len(matched) > topK {
		matched = matched[:topK]
	}
	return matched, nil
}

func (s *Store) decodeEvent(record string) (Event, error) {
	if s.sealer != nil {
		opened, err := s.sealer.Open(record)
		if err != nil {
			return Event{}, fmt.Errorf("open: %w", err)
		}
		record = opened
	}

	var ev Event
	if err := json.Unmarshal([]byte(record), &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal: %w", err)
	}
	return ev, nil
}

func payloadContains(payload map[string]any, needle string) bool {
	content, ok := payload["content"].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(needle))
}

func eventsKey(actorID, sessionID string) string {
	return "vona:events:" + actorID + ":" + sessionID
}

func sessionsKey(actorID string) string {
	return "vona:sessions:" + actorID
}

func summariesKey(actorID string) string {
	return "vona:summaries:" + actorID
}

func preferencesKey(actorID string) string {
	return "vona:preferences:" + actorID
}
