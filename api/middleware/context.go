package middleware

import (
	"context"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// PrincipalFromContext returns the caller resolved by Auth.
func PrincipalFromContext(ctx context.Context) (authz.Principal, bool) {
	if ctx == nil {
		return authz.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(authz.Principal)
	return p, ok
}

// PrincipalIDFromContext is empty for unauthenticated requests.
func PrincipalIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.ID.String()
	}
	return ""
}

// WithPrincipal injects the caller into the context for downstream handlers.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}
