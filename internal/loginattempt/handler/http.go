// Package handler serves the login attempt audit endpoints.
package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"workforce/backend/internal/loginattempt"
	"workforce/backend/internal/loginattempt/domain"
	"workforce/backend/internal/server/api"
)

// Server exposes read-only views over the login attempt audit trail.
type Server struct {
	attempts *loginattempt.Recorder
}

// NewServer returns the login attempt handlers.
func NewServer(attempts *loginattempt.Recorder) *Server {
	return &Server{attempts: attempts}
}

type attemptView struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employeeId,omitempty"`
	Email         string    `json:"email"`
	AttemptTime   time.Time `json:"attemptTime"`
	DeviceID      string    `json:"deviceId,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
}

func toViews(list []*domain.Attempt) []attemptView {
	out := make([]attemptView, 0, len(list))
	for _, a := range list {
		out = append(out, attemptView{
			ID:            a.ID,
			EmployeeID:    a.EmployeeID,
			Email:         a.Email,
			AttemptTime:   a.AttemptTime,
			DeviceID:      a.DeviceID,
			IPAddress:     a.IPAddress,
			UserAgent:     a.UserAgent,
			Status:        string(a.Status),
			FailureReason: a.FailureReason,
		})
	}
	return out
}

// List handles GET /login-attempts.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	list, err := s.attempts.List(r.Context(), page)
	if err != nil {
		internalError(w, r, err)
		return
	}
	api.OK(w, r, "Login attempts retrieved successfully", toViews(list))
}

// Blocked handles GET /login-attempts/blocked.
func (s *Server) Blocked(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	list, err := s.attempts.ListBlocked(r.Context(), page)
	if err != nil {
		internalError(w, r, err)
		return
	}
	api.OK(w, r, "Blocked login attempts retrieved successfully", toViews(list))
}

// BlockedCount handles GET /login-attempts/blocked/count.
func (s *Server) BlockedCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.attempts.CountBlocked(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	api.OK(w, r, "Blocked login attempt count retrieved successfully", n)
}

// ByEmployee handles GET /login-attempts/employee/{employeeID}.
func (s *Server) ByEmployee(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	list, err := s.attempts.ListByEmployee(r.Context(), chi.URLParam(r, "employeeID"), page)
	if err != nil {
		internalError(w, r, err)
		return
	}
	api.OK(w, r, "Login attempts retrieved successfully", toViews(list))
}

// parsePage reads the zero-based page and size query parameters.
func parsePage(w http.ResponseWriter, r *http.Request) (domain.Page, bool) {
	q := r.URL.Query()
	pageNo, err := queryInt(q.Get("page"), 0)
	if err != nil || pageNo < 0 {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", api.FieldErrors{"page": "Page must be a non-negative integer"})
		return domain.Page{}, false
	}
	size, err := queryInt(q.Get("size"), domain.DefaultPageSize)
	if err != nil || size <= 0 {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", api.FieldErrors{"size": "Size must be a positive integer"})
		return domain.Page{}, false
	}
	p := domain.Page{Limit: size}.Normalize()
	if pageNo > math.MaxInt/p.Limit {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", api.FieldErrors{"page": "Page is out of range"})
		return domain.Page{}, false
	}
	p.Offset = pageNo * p.Limit
	return p, true
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("login attempts: query failed")
	api.Error(w, r, http.StatusInternalServerError, "An unexpected error occurred", nil)
}
