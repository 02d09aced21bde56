package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	v1 "github.com/gosuda/vona/internal/api/v1"
	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/session"
)

// disabledAuth serves the login endpoints when no OAuth provider is
// configured; every operation reports the feature as unavailable.
type disabledAuth struct{}

func (disabledAuth) LoginConfigured() bool { return false }

func (disabledAuth) AuthorizationURL(string) (string, error) {
	return "", auth.ErrNotConfigured
}

func (disabledAuth) HandleCallback(context.Context, string) (string, *auth.Identity, error) {
	return "", nil, auth.ErrNotConfigured
}

func registerLoginRoutes(api huma.API, authSvc *auth.Service) {
	var svc v1.AuthService = disabledAuth{}
	if authSvc != nil {
		svc = authSvc
	}
	v1.RegisterLoginRoutes(api, svc)
}

func registerAPIRoutes(api huma.API, sessions *session.Manager, memStore *memory.Store) {
	v1.RegisterAuthRoutes(api)
	v1.RegisterSessionRoutes(api, sessions)
	if memStore != nil {
		v1.RegisterMemoryRoutes(api, memStore)
	}
}
