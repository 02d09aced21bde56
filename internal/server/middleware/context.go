package middleware

import (
	"context"

	"github.com/gosuda/vona/internal/auth"
)

type contextKey string

const ContextKeyIdentity contextKey = "identity"

func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	v, ok := ctx.Value(ContextKeyIdentity).(*auth.Identity)
	return v, ok
}
