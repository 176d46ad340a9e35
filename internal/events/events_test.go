package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, "test_event")

	err := bus.PublishJSON("test_event", map[string]string{"foo": "bar"})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, "test_event", received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded map[string]string
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusMultipleTypes(t *testing.T) {
	bus := NewEventBus()
	var seen []string

	bus.Subscribe(func(e *Event) error { seen = append(seen, e.Type); return nil }, "a", "b")

	require.NoError(t, bus.Publish(&Event{Type: "a"}))
	require.NoError(t, bus.Publish(&Event{Type: "b"}))
	require.NoError(t, bus.Publish(&Event{Type: "c"}))

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var secondCalled bool

	bus.Subscribe(func(_ *Event) error { return errors.New("first failed") }, "event")
	bus.Subscribe(func(_ *Event) error { secondCalled = true; return nil }, "event")

	err := bus.Publish(&Event{Type: "event"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.True(t, secondCalled)
}

func TestEventBusNil(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON("anything", nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventReservationCreated, ReservationEventPayload{ReservationID: 123, Status: "aguardando"})
	require.NoError(t, err)
	assert.Equal(t, EventReservationCreated, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded ReservationEventPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, int64(123), decoded.ReservationID)
	assert.Contains(t, string(event.Payload), `"reserva_id":123`)
}

func TestRegisterObservers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus()
	RegisterObservers(bus, &logger)

	err := bus.PublishJSON(EventReservationExpired, ReservationEventPayload{ReservationID: 7, BookID: 3, Status: "expirado"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"reservation_id":7`)

	err = bus.PublishJSON(EventLoanReturned, LoanEventPayload{LoanID: 9, Status: "devolvido"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"loan_id":9`)

	err = bus.Publish(&Event{Type: EventReservationCancelled, Payload: []byte("not json")})
	assert.Error(t, err)
}
