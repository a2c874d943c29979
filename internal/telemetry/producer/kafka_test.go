package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/telemetry"
)

type fakeWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	p, err := NewKafkaProducer(nil, "topic")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewKafkaProducer([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	assert.Nil(t, p)

	// nil producer is usable
	assert.NoError(t, p.Emit(context.Background(), &telemetry.SecurityEvent{}))
	assert.NoError(t, p.Close())
}

func TestNewKafkaProducer_Configured(t *testing.T) {
	p, err := NewKafkaProducer([]string{"k1:9092", "k2:9092"}, "security")
	require.NoError(t, err)
	require.NotNil(t, p)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "security", w.Topic)
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "security"}
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	err := p.Emit(context.Background(), &telemetry.SecurityEvent{
		Type:       telemetry.EventLoginAttempt,
		EmployeeID: "emp-1",
		Email:      "jane@example.com",
		Status:     "BLOCKED",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "emp-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, telemetry.EventLoginAttempt, string(msg.Headers[0].Value))

	var decoded telemetry.SecurityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "BLOCKED", decoded.Status)
	assert.Equal(t, "jane@example.com", decoded.Email)
}

func TestKafkaProducer_KeyFallsBackToEmail(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}

	require.NoError(t, p.Emit(context.Background(), &telemetry.SecurityEvent{Email: "ghost@example.com"}))
	assert.Equal(t, "ghost@example.com", string(w.msgs[0].Key))
}

func TestKafkaProducer_WriteError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{writeErr: errors.New("no brokers")}}
	assert.Error(t, p.Emit(context.Background(), &telemetry.SecurityEvent{}))
}

func TestKafkaProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
