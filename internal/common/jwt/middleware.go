package jwt

import (
	"net/http"

	"locshare/internal/common/contextx"
)

// AuthMiddlewareFunc validates tokens and injects claims plus the acting
// user id into the request context. Used for HTTP routes.
func AuthMiddlewareFunc(mgr *Manager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// extract token from Authorization header
			raw, err := FromAuthorization(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			// parse and validate token
			_, claims, err := mgr.ParseAndValidate(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			// inject claims and identity into context and proceed
			ctx := InjectClaims(r.Context(), claims)
			ctx = contextx.WithUserID(ctx, claims.Subject)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}
