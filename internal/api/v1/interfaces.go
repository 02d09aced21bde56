package v1

import (
	"context"

	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/session"
)

// SessionResolver abstracts session resolution for handler testing.
// *session.Manager satisfies this interface.
type SessionResolver interface {
	Enabled() bool
	Resolve(ctx context.Context, actorID, sessionID string) (*session.Session, error)
}

// MemoryStore abstracts the memory store for handler testing.
// *memory.Store satisfies this interface.
type MemoryStore interface {
	ListSessions(ctx context.Context, actorID string) ([]memory.SessionSummary, error)
	GetSession(ctx context.Context, actorID, sessionID string) (*memory.SessionSummary, error)
	ListEvents(ctx context.Context, actorID, sessionID string, limit int64) ([]memory.Event, error)
	Query(ctx context.Context, actorID string, filter memory.QueryFilter) ([]memory.Event, error)
	Preferences(ctx context.Context, actorID string) ([]string, error)
	AddPreference(ctx context.Context, actorID, preference string) error
}

// AuthService abstracts authentication for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	LoginConfigured() bool
	AuthorizationURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (token string, identity *auth.Identity, err error)
}
