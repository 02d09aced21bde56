package v1_test

import (
	"context"
	"errors"

	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/server/middleware"
	"github.com/gosuda/vona/internal/session"
)

var errStub = errors.New("stub failure")

// ---------------------------------------------------------------------------
// Context helpers — inject an authenticated identity for DoCtx
// ---------------------------------------------------------------------------

func identityCtx(email string) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyIdentity, &auth.Identity{
		Email: email,
		Name:  "Test User",
	})
}

// ---------------------------------------------------------------------------
// Mock session store (drives a real *session.Manager)
// ---------------------------------------------------------------------------

type mockSessionStore struct {
	events   []memory.Event
	context  string
	storeErr error
}

func (m *mockSessionStore) StoreEvent(_ context.Context, ev memory.Event) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockSessionStore) Context(_ context.Context, _ string) (string, error) {
	return m.context, nil
}

func enabledManager(store *mockSessionStore) *session.Manager {
	return session.NewManager(store)
}

// ---------------------------------------------------------------------------
// Mock MemoryStore
// ---------------------------------------------------------------------------

type mockMemoryStore struct {
	listSessionsFunc   func(ctx context.Context, actorID string) ([]memory.SessionSummary, error)
	getSessionFunc     func(ctx context.Context, actorID, sessionID string) (*memory.SessionSummary, error)
	listEventsFunc     func(ctx context.Context, actorID, sessionID string, limit int64) ([]memory.Event, error)
	queryFunc          func(ctx context.Context, actorID string, filter memory.QueryFilter) ([]memory.Event, error)
	preferencesFunc    func(ctx context.Context, actorID string) ([]string, error)
	addPreferenceFunc  func(ctx context.Context, actorID, preference string) error
}

func (m *mockMemoryStore) ListSessions(ctx context.Context, actorID string) ([]memory.SessionSummary, error) {
	return m.listSessionsFunc(ctx, actorID)
}

func (m *mockMemoryStore) GetSession(ctx context.Context, actorID, sessionID string) (*memory.SessionSummary, error) {
	return m.getSessionFunc(ctx, actorID, sessionID)
}

func (m *mockMemoryStore) ListEvents(ctx context.Context, actorID, sessionID string, limit int64) ([]memory.Event, error) {
	return m.listEventsFunc(ctx, actorID, sessionID, limit)
}

func (m *mockMemoryStore) Query(ctx context.Context, actorID string, filter memory.QueryFilter) ([]memory.Event, error) {
	return m.queryFunc(ctx, actorID, filter)
}

func (m *mockMemoryStore) Preferences(ctx context.Context, actorID string) ([]string, error) {
	return m.preferencesFunc(ctx, actorID)
}

func (m *mockMemoryStore) AddPreference(ctx context.Context, actorID, preference string) error {
	return m.addPreferenceFunc(ctx, actorID, preference)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	configured bool
	authURL    string
	token      string
	identity   *auth.Identity
	callbackErr error
}

func (m *mockAuthService) LoginConfigured() bool { return m.configured }

func (m *mockAuthService) AuthorizationURL(state string) (string, error) {
	if !m.configured {
		return "", auth.ErrNotConfigured
	}
	return m.authURL + "?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(_ context.Context, _ string) (string, *auth.Identity, error) {
	if m.callbackErr != nil {
		return "", nil, m.callbackErr
	}
	return m.token, m.identity, nil
}
