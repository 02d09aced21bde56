package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/server/middleware"
)

type ListSessionsOutput struct {
	Body struct {
		Sessions []memory.SessionSummary `json:"sessions"`
	}
}

type GetSessionInput struct {
	SessionID string `path:"sessionID" doc:"Session id"`
}

type GetSessionOutput struct {
	Body *memory.SessionSummary
}

type ListSessionEventsInput struct {
	SessionID string `path:"sessionID" doc:"Session id"`
	Limit     int64  `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum events to return"`
}

type ListSessionEventsOutput struct {
	Body struct {
		Events []memory.Event `json:"events"`
	}
}

type QueryMemoryInput struct {
	Body struct {
		SessionID string `json:"session_id,omitempty" doc:"Restrict to one session"`
		Type      string `json:"type,omitempty" enum:"session_start,user_input,agent_response,tool_use,session_end" doc:"Restrict to one event type"`
		Contains  string `json:"contains,omitempty" doc:"Case-insensitive substring match on event content"`
		TopK      int    `json:"top_k,omitempty" minimum:"1" maximum:"50" doc:"Maximum results, newest first"`
	}
}

type QueryMemoryOutput struct {
	Body struct {
		Events []memory.Event `json:"events"`
	}
}

type ListPreferencesOutput struct {
	Body struct {
		Preferences []string `json:"preferences"`
	}
}

type AddPreferenceInput struct {
	Body struct {
		Preference string `json:"preference" minLength:"1" maxLength:"512" doc:"Preference statement to remember"`
	}
}

type AddPreferenceOutput struct {
	Body struct {
		Preferences []string `json:"preferences"`
	}
}

func RegisterMemoryRoutes(api huma.API, store MemoryStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-memory-sessions",
		Method:      http.MethodGet,
		Path:        "/memory/sessions",
		Summary:     "List stored sessions for the caller",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		sessions, err := store.ListSessions(ctx, identity.ActorID())
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sessions", err)
		}

		out := &ListSessionsOutput{}
		out.Body.Sessions = sessions
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-memory-session",
		Method:      http.MethodGet,
		Path:        "/memory/sessions/{sessionID}",
		Summary:     "Get one stored session",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		summary, err := store.GetSession(ctx, identity.ActorID(), input.SessionID)
		if err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to load session", err)
		}

		return &GetSessionOutput{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-session-events",
		Method:      http.MethodGet,
		Path:        "/memory/sessions/{sessionID}/events",
		Summary:     "List events of one stored session",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, input *ListSessionEventsInput) (*ListSessionEventsOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		events, err := store.ListEvents(ctx, identity.ActorID(), input.SessionID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list events", err)
		}

		out := &ListSessionEventsOutput{}
		out.Body.Events = events
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "query-memory",
		Method:      http.MethodPost,
		Path:        "/memory/query",
		Summary:     "Search stored conversation events",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, input *QueryMemoryInput) (*QueryMemoryOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		events, err := store.Query(ctx, identity.ActorID(), memory.QueryFilter{
			SessionID: input.Body.SessionID,
			Type:      memory.EventType(input.Body.Type),
			Contains:  input.Body.Contains,
			TopK:      input.Body.TopK,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("memory query failed", err)
		}

		out := &QueryMemoryOutput{}
		out.Body.Events = events
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-preferences",
		Method:      http.MethodGet,
		Path:        "/memory/preferences",
		Summary:     "List remembered user preferences",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, _ *struct{}) (*ListPreferencesOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		prefs, err := store.Preferences(ctx, identity.ActorID())
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list preferences", err)
		}

		out := &ListPreferencesOutput{}
		out.Body.Preferences = prefs
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-preference",
		Method:      http.MethodPost,
		Path:        "/memory/preferences",
		Summary:     "Remember a user preference",
		Tags:        []string{"Memory"},
	}, func(ctx context.Context, input *AddPreferenceInput) (*AddPreferenceOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		if err := store.AddPreference(ctx, identity.ActorID(), input.Body.Preference); err != nil {
			return nil, huma.Error500InternalServerError("failed to store preference", err)
		}

		prefs, err := store.Preferences(ctx, identity.ActorID())
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list preferences", err)
		}

		out := &AddPreferenceOutput{}
		out.Body.Preferences = prefs
		return out, nil
	})
}
