package domain

import (
	"strings"
	"time"
)

// Employee is the principal that authenticates. Employee management owns the row;
// authentication only updates last login, password hash and password change date.
type Employee struct {
	ID             string
	Code           string // human employee code, e.g. 2026/001
	Email          string
	PasswordHash   string
	FirstName      string
	MiddleName     string
	LastName       string
	DepartmentID   int64
	DepartmentName string
	RoleID         int64
	RoleName       string
	Active         bool
	// LastPasswordChange is a calendar date; nil means the password was never changed.
	LastPasswordChange *time.Time
	LastLoginAt        *time.Time
	CreatedAt          time.Time
}

// FullName joins first, middle and last name, skipping empty parts.
func (e *Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.FirstName, e.MiddleName, e.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// PasswordExpiry reports the password state on the calendar day of today.
// A password that was never changed never expires; daysLeft is nil in that case.
func (e *Employee) PasswordExpiry(maxAgeDays int, today time.Time) (expired bool, daysLeft *int) {
	if e.LastPasswordChange == nil || maxAgeDays <= 0 {
		return false, nil
	}
	expiresOn := DateOf(*e.LastPasswordChange).AddDate(0, 0, maxAgeDays)
	days := DaysBetween(DateOf(today), expiresOn)
	return days < 0, &days
}

// DateOf truncates t to midnight in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from a to b; negative when b is before a.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
