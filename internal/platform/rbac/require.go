// Package rbac guards routes that need an authenticated caller or an administrative right.
package rbac

import (
	"net/http"

	"github.com/rs/zerolog"

	"workforce/backend/internal/policy/engine"
	"workforce/backend/internal/server/api"
	"workforce/backend/internal/server/middleware"
)

const (
	msgUnauthenticated = "Authentication required"
	msgForbidden       = "You do not have permission to perform this action"
)

// RequireAuthenticated rejects requests without a caller identity with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetIdentity(r.Context()); !ok {
			api.Error(w, r, http.StatusUnauthorized, msgUnauthenticated, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAction ensures the caller is authenticated and that authz allows action.
// Returns 401 without an identity and 403 when the policy denies or cannot decide.
func RequireAction(authz engine.Authorizer, action engine.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := middleware.GetIdentity(r.Context())
			if !ok {
				api.Error(w, r, http.StatusUnauthorized, msgUnauthenticated, nil)
				return
			}
			allowed, err := authz.Allow(r.Context(), engine.Subject{
				EmployeeID: id.EmployeeID,
				Email:      id.Email,
				Department: id.Department,
				Role:       id.Role,
			}, action)
			if err != nil || !allowed {
				zerolog.Ctx(r.Context()).Warn().
					Str("action", string(action)).
					Str("department", id.Department).
					Msg("rbac: access denied")
				api.Error(w, r, http.StatusForbidden, msgForbidden, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
