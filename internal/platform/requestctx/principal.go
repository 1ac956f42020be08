// Package requestctx carries authenticated request identity through context.
package requestctx

import "context"

// RoleAdmin marks accounts with moderation access.
const RoleAdmin = "ADMIN"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID   string
	CampusID string
	Role     string
	Verified bool
}

// IsAdmin reports whether the principal has admin access.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// principalContextKey is the context key for the authenticated principal.
type principalContextKey struct{}

// WithPrincipal stores an authenticated principal in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal stored in context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}
