package rest

import (
	"context"
	"net/http"

	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
)

// Verifier resolves a bearer token to its principal.
type Verifier interface {
	VerifyAccess(ctx context.Context, token string) (requestctx.Principal, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// principal in the request context. Unverified accounts are forbidden.
func RequireUser(verifier Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httpx.BearerToken(r)
			if token == "" {
				httpx.WriteJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			principal, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				httpx.WriteJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !principal.Verified {
				httpx.WriteJSONError(w, http.StatusForbidden, "email not verified")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalUser stores the principal when a valid bearer token is present and
// passes the request through untouched otherwise.
func OptionalUser(verifier Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httpx.BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
		})
	}
}
