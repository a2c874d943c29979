// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	healthhandler "workforce/backend/internal/health/handler"
	authhandler "workforce/backend/internal/identity/handler"
	attempthandler "workforce/backend/internal/loginattempt/handler"
	"workforce/backend/internal/logging"
	"workforce/backend/internal/platform/rbac"
	"workforce/backend/internal/policy/engine"
	"workforce/backend/internal/server/api"
	"workforce/backend/internal/server/middleware"
)

// Deps holds the handlers and collaborators the router mounts.
type Deps struct {
	Logger   func() *zerolog.Logger
	Sessions middleware.SessionValidator
	Authz    engine.Authorizer
	Auth     *authhandler.Server
	Attempts *attempthandler.Server
	Health   *healthhandler.Server
}

// NewRouter returns the root handler. Every request passes the bearer filter; routes that
// need a caller or an administrative right enforce it themselves.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if d.Logger != nil {
		r.Use(logging.NewHandler(d.Logger))
		r.Use(logging.RemoteAddrHandler("ip"))
		r.Use(logging.UserAgentHandler("user_agent"))
		r.Use(logging.RequestIDHandler("req_id"))
		r.Use(logging.AccessHandler)
	}
	r.Use(middleware.BearerFilter(d.Sessions))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, r, http.StatusNotFound, "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Live)
		r.Get("/readyz", d.Health.Ready)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", d.Auth.Login)
		r.Post("/logout", d.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(rbac.RequireAuthenticated)
			r.Get("/me", d.Auth.Me)
			r.Post("/change-password", d.Auth.ChangePassword)
		})

		r.With(rbac.RequireAction(d.Authz, engine.ActionResetPassword)).
			Post("/reset-password", d.Auth.ResetPassword)
		r.With(rbac.RequireAction(d.Authz, engine.ActionForceLogout)).
			Post("/sessions/{employeeID}/force-logout", d.Auth.ForceLogout)
		r.With(rbac.RequireAction(d.Authz, engine.ActionViewSessions)).
			Get("/sessions/active/count", d.Auth.ActiveSessionCount)

		r.Route("/login-attempts", func(r chi.Router) {
			r.Use(rbac.RequireAction(d.Authz, engine.ActionViewLoginAttempts))
			r.Get("/", d.Attempts.List)
			r.Get("/blocked", d.Attempts.Blocked)
			r.Get("/blocked/count", d.Attempts.BlockedCount)
			r.Get("/employee/{employeeID}", d.Attempts.ByEmployee)
		})
	})
	return r
}
