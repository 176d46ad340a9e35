package events

import (
	"fmt"

	"bibliotech/internal/metrics"

	"github.com/rs/zerolog"
)

// RegisterObservers wires the audit log and the Prometheus counters to the bus.
func RegisterObservers(bus *EventBus, logger *zerolog.Logger) {
	bus.Subscribe(func(event *Event) error {
		var payload ReservationEventPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		metrics.IncReservationTransition(payload.Status)
		logger.Info().
			Str("event", event.Type).
			Int64("reservation_id", payload.ReservationID).
			Int64("book_id", payload.BookID).
			Int64("user_id", payload.UserID).
			Str("status", payload.Status).
			Str("changed_by", payload.ChangedBy).
			Msg("reservation event")
		return nil
	}, ReservationEvents...)

	bus.Subscribe(func(event *Event) error {
		var payload LoanEventPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		metrics.IncLoanEvent(event.Type)
		logger.Info().
			Str("event", event.Type).
			Int64("loan_id", payload.LoanID).
			Int64("book_id", payload.BookID).
			Int64("user_id", payload.UserID).
			Msg("loan event")
		return nil
	}, EventLoanCreated, EventLoanReturned, EventLoanOverdue)

	bus.Subscribe(func(event *Event) error {
		logger.Debug().Str("event", event.Type).RawJSON("payload", event.Payload).Msg("review event")
		return nil
	}, EventReviewCreated)
}
