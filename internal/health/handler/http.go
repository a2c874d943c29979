// Package handler serves liveness and readiness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"workforce/backend/internal/server/api"
)

const readinessTimeout = 2 * time.Second

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the authorization engine can evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server answers /healthz and /readyz. Either dependency may be nil and is then skipped.
type Server struct {
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a health Server.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// Live reports that the process is serving.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	api.OK(w, r, "ok", map[string]string{"status": "SERVING"})
}

// Ready reports SERVING only when the database answers and the policy engine evaluates.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	if s.pinger != nil {
		checks["database"] = "ok"
		if err := s.pinger.Ping(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("health: database ping failed")
			checks["database"] = "unavailable"
			healthy = false
		}
	}
	if s.policy != nil {
		checks["policy"] = "ok"
		if err := s.policy.HealthCheck(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("health: policy check failed")
			checks["policy"] = "unavailable"
			healthy = false
		}
	}
	if !healthy {
		api.Error(w, r, http.StatusServiceUnavailable, "NOT_SERVING", checks)
		return
	}
	api.OK(w, r, "SERVING", checks)
}
