package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"workforce/backend/internal/telemetry"
)

const instrumentationName = "workforce/auth"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends security events as OTel log records
// via provider. A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.NoopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger is NewEventEmitter over an arbitrary record sink. Used by tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to a log record. Severity is WARN for blocked or failed logins
// and forced logouts, INFO otherwise.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(event.Type))
	rec.SetSeverity(otellog.SeverityInfo)
	if event.Type == telemetry.EventForceLogout || event.Status == "BLOCKED" || event.Status == "FAILED" {
		rec.SetSeverity(otellog.SeverityWarn)
	}

	attrs := []struct{ key, val string }{
		{"event_type", event.Type},
		{"employee_id", event.EmployeeID},
		{"email", event.Email},
		{"session_id", event.SessionID},
		{"status", event.Status},
		{"reason", event.Reason},
		{"device_id", event.DeviceID},
		{"ip_address", event.IPAddress},
		{"user_agent", event.UserAgent},
		{"actor", event.Actor},
	}
	for _, a := range attrs {
		if a.val != "" {
			rec.AddAttributes(otellog.String(a.key, a.val))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
