// Package producer publishes security events to Kafka.
package producer

import (
	"io"

	"workforce/backend/internal/telemetry"
)

// Producer emits security events to an external stream. Callers use it best-effort.
type Producer interface {
	telemetry.EventEmitter
	io.Closer
}
