package domain

import "time"

// Status is the lifecycle state of a session. ACTIVE is the only non-terminal state.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusExpired     Status = "EXPIRED"
	StatusLoggedOut   Status = "LOGGED_OUT"
	StatusForceLogout Status = "FORCE_LOGOUT"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusLoggedOut, StatusForceLogout:
		return true
	}
	return false
}

// ExpiryReason names the guard that expired a session.
type ExpiryReason string

const (
	ExpiryInactivity ExpiryReason = "inactivity"
	ExpiryRollover   ExpiryReason = "rollover"
)

// Session is one employee login on one device. Only the SHA-256 of the token is stored.
type Session struct {
	ID               string
	EmployeeID       string
	TokenHash        string
	DeviceID         string
	IPAddress        string
	LoginTime        time.Time
	LastActivityTime time.Time
	Status           Status
	LogoutTime       *time.Time // nil while ACTIVE
}

// Active reports whether the session is ACTIVE.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// IdleTooLong reports whether more than timeout has passed since the last activity.
func (s *Session) IdleTooLong(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityTime) > timeout
}

// StartedBefore reports whether the session was opened before dayStart,
// i.e. on an earlier calendar day than the one beginning at dayStart.
func (s *Session) StartedBefore(dayStart time.Time) bool {
	return s.LoginTime.Before(dayStart)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
