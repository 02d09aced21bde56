package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/vona/internal/server/middleware"
)

type CreateSessionInput struct {
	Body struct {
		SessionID string `json:"session_id,omitempty" maxLength:"128" doc:"Existing session id to resume; omit to start a new session"`
	}
}

type CreateSessionOutput struct {
	Body struct {
		SessionID string `json:"session_id"`
		Context   string `json:"context,omitempty"`
	}
}

func RegisterSessionRoutes(api huma.API, sessions SessionResolver) {
	huma.Register(api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/sessions",
		Summary:     "Create or resume a conversation session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		if !sessions.Enabled() {
			return nil, huma.Error503ServiceUnavailable("session memory is not enabled")
		}

		sess, err := sessions.Resolve(ctx, identity.ActorID(), input.Body.SessionID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to initialize session", err)
		}

		out := &CreateSessionOutput{}
		out.Body.SessionID = sess.ID()
		out.Body.Context = sess.Context()
		return out, nil
	})
}
