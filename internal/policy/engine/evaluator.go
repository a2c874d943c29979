package engine

import "context"

// Action names an administrative operation guarded by policy.
type Action string

const (
	ActionResetPassword     Action = "reset_password"
	ActionViewLoginAttempts Action = "view_login_attempts"
	ActionForceLogout       Action = "force_logout"
	ActionViewSessions      Action = "view_sessions"
)

// Subject is the authenticated caller as carried in the identity token.
type Subject struct {
	EmployeeID string
	Email      string
	Department string
	Role       string
}

// Authorizer decides whether a subject may perform an action.
type Authorizer interface {
	// Allow returns false without error for a well-formed deny. An error means no decision
	// could be made; callers treat it as deny.
	Allow(ctx context.Context, subject Subject, action Action) (bool, error)
}
