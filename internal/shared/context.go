package shared

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context. Passing nil clears any
// previously bound identity, which matters on token-parse failures so pooled
// workers never observe a stale principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
