package events

import (
	"errors"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	EventReservationCreated   = "reservation_created"
	EventReservationPromoted  = "reservation_promoted"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationCompleted = "reservation_completed"
	EventReservationExpired   = "reservation_expired"

	EventLoanCreated  = "loan_created"
	EventLoanReturned = "loan_returned"
	EventLoanOverdue  = "loan_overdue"

	EventReviewCreated = "review_created"
)

// ReservationEvents lists every reservation lifecycle event type.
var ReservationEvents = []string{
	EventReservationCreated,
	EventReservationPromoted,
	EventReservationCancelled,
	EventReservationCompleted,
	EventReservationExpired,
}

// ReservationEventPayload is the reservation snapshot sent to consumers.
type ReservationEventPayload struct {
	ReservationID int64      `json:"reserva_id"`
	BookID        int64      `json:"livro_id"`
	UserID        int64      `json:"usuario_id"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"data_expiracao,omitempty"`
	ChangedBy     string     `json:"alterado_por,omitempty"`
	ChangedByID   int64      `json:"alterado_por_id,omitempty"`
}

type LoanEventPayload struct {
	LoanID int64     `json:"emprestimo_id"`
	BookID int64     `json:"livro_id"`
	UserID int64     `json:"usuario_id"`
	Status string    `json:"status"`
	DueAt  time.Time `json:"data_prevista"`
}

type ReviewEventPayload struct {
	ReviewID int64 `json:"avaliacao_id"`
	BookID   int64 `json:"livro_id"`
	UserID   int64 `json:"usuario_id"`
	Score    int   `json:"nota"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish runs every subscriber of the event type synchronously and joins
// their errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
