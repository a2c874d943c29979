// Package middleware holds the HTTP filters that resolve the caller's identity.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"workforce/backend/internal/security"
	sessdomain "workforce/backend/internal/session/domain"
	"workforce/backend/internal/session/lifecycle"
)

const bearerPrefix = "bearer "

// SessionValidator maps a token to its live session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*security.Claims, *sessdomain.Session, error)
}

// BearerFilter validates the Bearer token on every request and, when the token maps to an
// ACTIVE session, puts the caller Identity in the request context. It never rejects a
// request: a missing or invalid token just leaves the request unauthenticated, and
// route-level authorization decides what an anonymous caller may do.
func BearerFilter(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			claims, sess, err := sessions.Validate(ctx, token)
			if err != nil {
				if errors.Is(err, lifecycle.ErrSessionInvalid) {
					zerolog.Ctx(ctx).Debug().Err(err).Msg("auth: bearer token rejected")
				} else {
					zerolog.Ctx(ctx).Error().Err(err).Msg("auth: validate bearer token")
				}
				next.ServeHTTP(w, r)
				return
			}

			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("employee_id", claims.EmployeeID)
			})
			ctx = WithIdentity(ctx, &Identity{
				EmployeeID: claims.EmployeeID,
				Email:      claims.Email,
				Department: claims.Department,
				Role:       claims.Role,
				FullName:   claims.FullName,
				SessionID:  sess.ID,
				Token:      token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or "" if missing
// or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
