// Package handler serves the /api/v1/auth endpoints.
package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"workforce/backend/internal/identity/service"
	"workforce/backend/internal/server/api"
	"workforce/backend/internal/server/middleware"
)

// ActiveSessionCounter counts ACTIVE sessions.
type ActiveSessionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// Server holds the auth endpoints.
type Server struct {
	auth     *service.AuthService
	sessions ActiveSessionCounter
	proxies  TrustedProxies
}

// Option configures a Server.
type Option func(*Server)

// WithTrustedProxies sets the peers allowed to report the client address in forwarding headers.
func WithTrustedProxies(t TrustedProxies) Option {
	return func(s *Server) { s.proxies = t }
}

// NewServer returns the auth HTTP handlers.
func NewServer(auth *service.AuthService, sessions ActiveSessionCounter, opts ...Option) *Server {
	s := &Server{auth: auth, sessions: sessions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	DeviceID  string `json:"deviceId"`
	// IPAddress is accepted from older clients but never trusted.
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type loginResponse struct {
	Token                   string `json:"token"`
	TokenType               string `json:"tokenType"`
	ExpiresIn               int64  `json:"expiresIn"`
	EmpID                   string `json:"empId"`
	Email                   string `json:"email"`
	FullName                string `json:"fullName"`
	FirstName               string `json:"firstName"`
	LastName                string `json:"lastName"`
	DepartmentID            int64  `json:"departmentId"`
	DepartmentName          string `json:"departmentName"`
	RoleID                  int64  `json:"roleId"`
	RoleName                string `json:"roleName"`
	PasswordExpired         bool   `json:"passwordExpired"`
	DaysUntilPasswordExpiry *int   `json:"daysUntilPasswordExpiry,omitempty"`
	PasswordExpiryWarning   string `json:"passwordExpiryWarning,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordResponse struct {
	Message                string `json:"message"`
	LastPasswordChangeDate string `json:"lastPasswordChangeDate"`
	NextPasswordChangeDate string `json:"nextPasswordChangeDate"`
	DaysUntilExpiry        int    `json:"daysUntilExpiry"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

const dateLayout = "2006-01-02"

// Login handles POST /login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, r, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	fields := api.FieldErrors{}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		fields["email"] = "Email must be valid"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		fields["deviceId"] = "Device ID is required"
	}
	if len(fields) > 0 {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", fields)
		return
	}

	ip := s.proxies.ClientIP(r)
	ua := strings.TrimSpace(req.UserAgent)
	if ua == "" {
		ua = r.UserAgent()
	}
	res, err := s.auth.Login(r.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		DeviceID:  strings.TrimSpace(req.DeviceID),
		IPAddress: ip,
		UserAgent: ua,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	e := res.Employee
	api.OK(w, r, "Login successful", loginResponse{
		Token:                   res.Token,
		TokenType:               res.TokenType,
		ExpiresIn:               res.ExpiresIn.Milliseconds(),
		EmpID:                   e.Code,
		Email:                   e.Email,
		FullName:                e.FullName(),
		FirstName:               e.FirstName,
		LastName:                e.LastName,
		DepartmentID:            e.DepartmentID,
		DepartmentName:          e.DepartmentName,
		RoleID:                  e.RoleID,
		RoleName:                e.RoleName,
		PasswordExpired:         res.PasswordExpired,
		DaysUntilPasswordExpiry: res.DaysUntilPasswordExpiry,
		PasswordExpiryWarning:   res.PasswordExpiryWarning,
	})
}

// Logout handles POST /logout. It always answers 200, with or without a live session.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), middleware.ExtractBearer(r)); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("auth: logout failed")
	}
	api.OK(w, r, "Logout successful", nil)
}

// ChangePassword handles POST /change-password for the authenticated caller.
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	var req changePasswordRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, r, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.CurrentPassword == "" {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", api.FieldErrors{"currentPassword": "Current password is required"})
		return
	}
	res, err := s.auth.ChangePassword(r.Context(), id.Email, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, r, "Password changed successfully", changePasswordResponse{
		Message:                "Password changed successfully",
		LastPasswordChangeDate: res.LastPasswordChangeDate.Format(dateLayout),
		NextPasswordChangeDate: res.NextPasswordChangeDate.Format(dateLayout),
		DaysUntilExpiry:        res.DaysUntilExpiry,
	})
}

// ResetPassword handles POST /reset-password. Route-level policy limits it to ADMIN and HR.
func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	var req resetPasswordRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, r, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		api.Error(w, r, http.StatusBadRequest, "Validation failed", api.FieldErrors{"email": "Email is required"})
		return
	}
	if err := s.auth.ResetPassword(r.Context(), req.Email, req.NewPassword, req.ConfirmPassword, id.Email); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, r, "Password reset successful. Employee must login with new password.", nil)
}

// ForceLogout handles POST /sessions/{employeeID}/force-logout.
func (s *Server) ForceLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	n, err := s.auth.ForceLogout(r.Context(), chi.URLParam(r, "employeeID"), id.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, r, "Sessions terminated", map[string]int64{"terminated": n})
}

// ActiveSessionCount handles GET /sessions/active/count.
func (s *Server) ActiveSessionCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.sessions.CountActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, r, "Active session count retrieved successfully", n)
}

// Me handles GET /me and echoes the caller's identity.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	api.OK(w, r, "Current employee", map[string]string{
		"empId":      id.EmployeeID,
		"email":      id.Email,
		"fullName":   id.FullName,
		"department": id.Department,
		"role":       id.Role,
		"sessionId":  id.SessionID,
	})
}
