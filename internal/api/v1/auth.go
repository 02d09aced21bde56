package v1

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/vona/internal/server/middleware"
)

type LoginOutput struct {
	Status   int
	Location string      `header:"Location"`
	Cookie   http.Cookie `header:"Set-Cookie"`
}

type CallbackInput struct {
	Code  string `query:"code" required:"true" doc:"Authorization code from the provider"`
	State string `query:"state" required:"true" doc:"Opaque state echoed by the provider"`
	Saved string `cookie:"oauth_state"`
}

type CallbackOutput struct {
	Status   int
	Location string      `header:"Location"`
	Cookie   http.Cookie `header:"Set-Cookie"`
}

type MeOutput struct {
	Body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
}

type LogoutOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// RegisterLoginRoutes mounts the unauthenticated OAuth endpoints.
func RegisterLoginRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodGet,
		Path:        "/auth/login",
		Summary:     "Redirect to the OAuth provider",
		Tags:        []string{"Auth"},
	}, func(_ context.Context, _ *struct{}) (*LoginOutput, error) {
		if !authSvc.LoginConfigured() {
			return nil, huma.Error503ServiceUnavailable("authentication is not configured")
		}

		state := uuid.NewString()
		authURL, err := authSvc.AuthorizationURL(state)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to build authorization URL", err)
		}

		return &LoginOutput{
			Status:   http.StatusTemporaryRedirect,
			Location: authURL,
			Cookie: http.Cookie{
				Name:     "oauth_state",
				Value:    state,
				Path:     "/",
				MaxAge:   600,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-callback",
		Method:      http.MethodGet,
		Path:        "/auth/callback",
		Summary:     "Complete the OAuth flow and issue a token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *CallbackInput) (*CallbackOutput, error) {
		if !authSvc.LoginConfigured() {
			return nil, huma.Error503ServiceUnavailable("authentication is not configured")
		}

		if input.Saved == "" || input.State != input.Saved {
			return nil, huma.Error400BadRequest("state mismatch")
		}

		token, _, err := authSvc.HandleCallback(ctx, input.Code)
		if err != nil {
			return nil, huma.Error401Unauthorized("authentication failed")
		}

		// The SPA picks the token out of the query string on load.
		return &CallbackOutput{
			Status:   http.StatusTemporaryRedirect,
			Location: "/?token=" + url.QueryEscape(token),
			Cookie: http.Cookie{
				Name:   "oauth_state",
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			},
		}, nil
	})
}

// RegisterAuthRoutes mounts the authenticated account endpoints.
func RegisterAuthRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Describe the authenticated caller",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		identity, ok := middleware.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		out := &MeOutput{}
		out.Body.Email = identity.Email
		out.Body.Name = identity.Name
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "Log out",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, _ *struct{}) (*LogoutOutput, error) {
		// Tokens are stateless; the client just discards it.
		out := &LogoutOutput{}
		out.Body.Status = "logged_out"
		return out, nil
	})
}
