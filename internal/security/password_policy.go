package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPasswordPolicy matches every *PolicyError via errors.Is.
var ErrPasswordPolicy = errors.New("password policy violation")

// PolicyError lists the rules a candidate password broke.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Violations, "; ")
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy
}

// PolicyViolation builds a single-message PolicyError.
func PolicyViolation(msg string) error {
	return &PolicyError{Violations: []string{msg}}
}

var (
	hasLetter         = regexp.MustCompile(`[A-Za-z]`)
	hasDigit          = regexp.MustCompile(`\d`)
	allowedPwdCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]*$`)
)

// PasswordPolicy is the format rule for new passwords.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// DefaultPasswordPolicy requires 8 to 50 characters with at least one letter and one digit,
// drawn only from letters, digits and @$!%*?&.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, MaxLength: 50}
}

// Validate returns nil or a *PolicyError listing every broken rule.
func (p PasswordPolicy) Validate(password string) error {
	var violations []string
	if strings.TrimSpace(password) == "" {
		return PolicyViolation("New password is required")
	}
	if n := len(password); n < p.MinLength || n > p.MaxLength {
		violations = append(violations, fmt.Sprintf("Password must be between %d and %d characters", p.MinLength, p.MaxLength))
	}
	if !hasLetter.MatchString(password) || !hasDigit.MatchString(password) {
		violations = append(violations, "Password must contain at least one letter and one number")
	}
	if !allowedPwdCharset.MatchString(password) {
		violations = append(violations, "Password may only contain letters, numbers and @$!%*?&")
	}
	if len(violations) == 0 {
		return nil
	}
	return &PolicyError{Violations: violations}
}
