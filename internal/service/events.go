package service

import (
	"bibliotech/internal/domain"
	"bibliotech/internal/events"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

// Who triggered a transition, as recorded in event payloads.
const (
	changedByUser   = "usuario"
	changedByAdmin  = "admin"
	changedBySystem = "sistema"
)

// publisher wraps the optional event bus; publishing failures are logged and
// never fail the request.
type publisher struct {
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func (p publisher) publish(eventType string, payload interface{}) {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishJSON(eventType, payload); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (p publisher) reservation(eventType string, r *models.Reservation, changedBy string, changedByID int64) {
	if r == nil {
		return
	}
	p.publish(eventType, events.ReservationEventPayload{
		ReservationID: r.ID,
		BookID:        r.BookID,
		UserID:        r.UserID,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		ChangedBy:     changedBy,
		ChangedByID:   changedByID,
	})
}

func (p publisher) loan(eventType string, l *models.Loan) {
	if l == nil {
		return
	}
	p.publish(eventType, events.LoanEventPayload{
		LoanID: l.ID,
		BookID: l.BookID,
		UserID: l.UserID,
		Status: l.Status,
		DueAt:  l.DueAt,
	})
}
