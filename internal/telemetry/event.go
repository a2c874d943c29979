// Package telemetry carries security events (login attempts, forced logouts) to
// best-effort sinks such as Kafka and OTel logs.
package telemetry

import (
	"context"
	"time"
)

// Event types.
const (
	EventLoginAttempt   = "login_attempt"
	EventLogout         = "logout"
	EventForceLogout    = "force_logout"
	EventPasswordChange = "password_change"
	EventPasswordReset  = "password_reset"
)

// SecurityEvent is one auditable security fact. JSON is the wire format on Kafka.
type SecurityEvent struct {
	Type       string    `json:"type"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventEmitter emits security events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, *SecurityEvent) error { return nil }
