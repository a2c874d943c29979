package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmitter struct {
	mu      sync.Mutex
	events  []*SecurityEvent
	emitErr error
	delay   time.Duration
	ctxErr  error
}

func (m *mockEmitter) Emit(ctx context.Context, event *SecurityEvent) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEmitter) getEvents() []*SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SecurityEvent(nil), m.events...)
}

func drain(t *testing.T, a *AsyncEmitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Drain(ctx))
}

func TestAsyncEmitter_NilSafe(t *testing.T) {
	var nilEmitter *AsyncEmitter
	assert.NoError(t, nilEmitter.Emit(context.Background(), &SecurityEvent{}))

	a := NewAsyncEmitter(nil)
	assert.NoError(t, a.Emit(context.Background(), &SecurityEvent{}))

	sink := &mockEmitter{}
	a = NewAsyncEmitter(sink)
	assert.NoError(t, a.Emit(context.Background(), nil))
	drain(t, a)
	assert.Empty(t, sink.getEvents())
}

func TestAsyncEmitter_Delivers(t *testing.T) {
	sink := &mockEmitter{}
	a := NewAsyncEmitter(sink)

	require.NoError(t, a.Emit(context.Background(), &SecurityEvent{Type: EventLoginAttempt, EmployeeID: "emp-1"}))
	drain(t, a)

	events := sink.getEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "emp-1", events[0].EmployeeID)
}

func TestAsyncEmitter_IgnoresRequestCancellation(t *testing.T) {
	sink := &mockEmitter{}
	a := NewAsyncEmitter(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Emit(ctx, &SecurityEvent{Type: EventForceLogout}))
	drain(t, a)

	require.Len(t, sink.getEvents(), 1)
	assert.NoError(t, sink.ctxErr)
}

func TestAsyncEmitter_ErrorNotSurfaced(t *testing.T) {
	sink := &mockEmitter{emitErr: errors.New("broker down")}
	a := NewAsyncEmitter(sink)

	assert.NoError(t, a.Emit(context.Background(), &SecurityEvent{Type: EventLoginAttempt}))
	drain(t, a)
}

func TestAsyncEmitter_Concurrent(t *testing.T) {
	sink := &mockEmitter{}
	a := NewAsyncEmitter(sink)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Emit(context.Background(), &SecurityEvent{Type: EventLoginAttempt})
		}()
	}
	wg.Wait()
	drain(t, a)
	assert.Len(t, sink.getEvents(), 20)
}

func TestAsyncEmitter_DrainHonoursContext(t *testing.T) {
	sink := &mockEmitter{delay: time.Second}
	a := NewAsyncEmitter(sink)
	require.NoError(t, a.Emit(context.Background(), &SecurityEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Drain(ctx), context.DeadlineExceeded)
	drain(t, a)
}

func TestFanout(t *testing.T) {
	ok := &mockEmitter{}
	failing := &mockEmitter{emitErr: errors.New("sink failed")}
	f := Fanout{ok, nil, failing}

	err := f.Emit(context.Background(), &SecurityEvent{Type: EventLogout})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink failed")
	assert.Len(t, ok.getEvents(), 1)
	assert.Len(t, failing.getEvents(), 1)

	assert.NoError(t, Fanout{ok}.Emit(context.Background(), &SecurityEvent{}))
}
