package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gosuda/vona/internal/auth"
)

// TokenVerifier resolves a bearer token to an identity. *auth.Service
// satisfies this interface.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*auth.Identity, error)
}

// Auth resolves the caller identity from a Bearer token (or a `token` query
// parameter, used by WebSocket clients that cannot set headers). A nil
// verifier means authentication is disabled; every caller then acts as the
// anonymous identity.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				ctx := withIdentity(r.Context(), &auth.Identity{Email: "anonymous", Name: "Anonymous"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token := extractBearer(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
				return
			}

			identity, err := verifier.VerifyToken(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

func withIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}
