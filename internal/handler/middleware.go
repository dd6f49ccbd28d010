package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gridmarket/gridmarket/internal/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom extracts the authenticated identity from the request
// context. Returns nil when the request was not authenticated.
func IdentityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}

// requireAuth is middleware that verifies the Bearer token and stores the
// caller's identity in the request context.
func requireAuth(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			identity, err := authSvc.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
