package session

import (
	"context"

	"github.com/sakif/college-forum/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// principal stored by WithPrincipal.
type contextKey struct{}

// WithPrincipal returns a context carrying the signed-in principal.
// Repositories and services read it back with PrincipalFromContext instead
// of reaching for process-wide state.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal, or false for an anonymous
// caller.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(model.Principal)
	return p, ok && p.ID != ""
}
