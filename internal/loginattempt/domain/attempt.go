package domain

import "time"

// Status is the outcome of one login attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusBlocked Status = "BLOCKED"
	StatusFailed  Status = "FAILED"
)

// Failure reasons recorded on BLOCKED and FAILED attempts.
const (
	ReasonInvalidPassword = "Invalid password"
	ReasonUnknownEmail    = "Employee not found"
	ReasonAccountInactive = "Account is inactive"
	ReasonDuplicate       = "You are already logged in on another device. You need to logout first"
)

// Attempt is one immutable login attempt row.
type Attempt struct {
	ID            string
	EmployeeID    string // empty when the email matched no employee
	Email         string
	AttemptTime   time.Time
	DeviceID      string
	IPAddress     string
	UserAgent     string
	Status        Status
	FailureReason string
}

// Page selects a window of a newest-first listing.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageSize is used when a caller asks for no or a non-positive limit.
const DefaultPageSize = 20

// MaxPageSize caps Limit.
const MaxPageSize = 200

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
