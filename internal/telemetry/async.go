package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown waits for in-flight async emits. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Fanout emits each event to every sink and joins their errors.
type Fanout []EventEmitter

func (f Fanout) Emit(ctx context.Context, event *SecurityEvent) error {
	var result *multierror.Error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// AsyncEmitter runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Request cancellation does not abort an in-flight emit.
type AsyncEmitter struct {
	next EventEmitter
	wg   sync.WaitGroup
}

// NewAsyncEmitter wraps next. A nil next yields an emitter that drops events.
func NewAsyncEmitter(next EventEmitter) *AsyncEmitter {
	return &AsyncEmitter{next: next}
}

// Emit schedules event and returns nil immediately. Failures are logged on the caller's logger.
func (a *AsyncEmitter) Emit(ctx context.Context, event *SecurityEvent) error {
	if a == nil || a.next == nil || event == nil {
		return nil
	}
	logger := zerolog.Ctx(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := a.next.Emit(emitCtx, event); err != nil {
			logger.Warn().Err(err).Str("event_type", event.Type).Msg("telemetry: async emit failed")
		}
	}()
	return nil
}

// Drain waits for in-flight emits or until ctx is done.
func (a *AsyncEmitter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
