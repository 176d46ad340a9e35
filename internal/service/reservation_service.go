package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bibliotech/internal/database"
	"bibliotech/internal/domain"
	"bibliotech/internal/events"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService drives the reservation lifecycle: creation, owner
// cancellation, pickup, promotion from the queue and expiry.
type ReservationService struct {
	repo         domain.ReservationRepository
	events       publisher
	pickupWindow time.Duration
	loanPeriod   time.Duration
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewReservationService(
	repo domain.ReservationRepository,
	eventBus domain.EventPublisher,
	pickupWindow, loanPeriod time.Duration,
	logger *zerolog.Logger,
) *ReservationService {
	if pickupWindow <= 0 {
		pickupWindow = models.DefaultPickupWindow
	}
	if loanPeriod <= 0 {
		loanPeriod = models.DefaultLoanPeriod
	}
	return &ReservationService{
		repo:         repo,
		events:       publisher{bus: eventBus, logger: logger},
		pickupWindow: pickupWindow,
		loanPeriod:   loanPeriod,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ReservationService) PickupWindow() time.Duration {
	return s.pickupWindow
}

// Create reserves bookID for userID.
func (s *ReservationService) Create(ctx context.Context, userID, bookID int64) (*models.Reservation, error) {
	if bookID <= 0 {
		return nil, fmt.Errorf("livro_id is required: %w", ErrValidation)
	}

	r, err := s.repo.CreateReservation(ctx, userID, bookID, s.pickupWindow)
	if err != nil {
		return nil, err
	}

	s.events.reservation(events.EventReservationCreated, r, changedByUser, userID)
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("book_id", bookID).
		Int64("user_id", userID).
		Str("status", r.Status).
		Msg("Reservation created")
	return r, nil
}

// Cancel cancels a reservation on behalf of its owner. Reservations of other
// users are reported as database.ErrNotFound.
func (s *ReservationService) Cancel(ctx context.Context, id, userID int64) (*models.ReservationChange, error) {
	change, err := s.repo.CancelReservation(ctx, id, userID, s.pickupWindow)
	if err != nil {
		return nil, err
	}

	s.events.reservation(events.EventReservationCancelled, change.Reservation, changedByUser, userID)
	s.events.reservation(events.EventReservationPromoted, change.Promoted, changedBySystem, 0)
	return change, nil
}

// ListForUser returns the caller's reservations grouped for display.
func (s *ReservationService) ListForUser(ctx context.Context, userID int64) (models.ReservationGroups, error) {
	list, err := s.repo.ListUserReservations(ctx, userID)
	if err != nil {
		return models.ReservationGroups{}, err
	}
	return models.GroupReservations(list), nil
}

// Complete records the pickup of a ready reservation and opens the loan.
func (s *ReservationService) Complete(ctx context.Context, id, adminID int64) (*models.Reservation, *models.Loan, error) {
	r, loan, err := s.repo.CompleteReservation(ctx, id, s.loanPeriod)
	if err != nil {
		return nil, nil, err
	}

	s.events.reservation(events.EventReservationCompleted, r, changedByAdmin, adminID)
	s.events.loan(events.EventLoanCreated, loan)
	return r, loan, nil
}

// PromoteNext offers a free copy of bookID to the head of its queue.
func (s *ReservationService) PromoteNext(ctx context.Context, bookID, adminID int64) (*models.Reservation, error) {
	r, err := s.repo.PromoteNext(ctx, bookID, s.pickupWindow)
	if err != nil {
		return nil, err
	}
	s.events.reservation(events.EventReservationPromoted, r, changedByAdmin, adminID)
	return r, nil
}

// PromoteQueue promotes waiting reservations of bookID while copies last.
func (s *ReservationService) PromoteQueue(ctx context.Context, bookID int64) ([]*models.Reservation, error) {
	promoted := make([]*models.Reservation, 0)
	for {
		r, err := s.repo.PromoteNext(ctx, bookID, s.pickupWindow)
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrNotAvailable) {
			return promoted, nil
		}
		if err != nil {
			return promoted, err
		}
		s.events.reservation(events.EventReservationPromoted, r, changedBySystem, 0)
		promoted = append(promoted, r)
	}
}

// Sweep expires ready reservations past their pickup deadline, then promotes
// queued reservations of books with free copies. Partial results are
// returned with the error.
func (s *ReservationService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	result, expireErr := s.repo.ExpireOverdue(ctx, s.now(), s.pickupWindow)
	if result == nil {
		result = &models.SweepResult{Expired: []*models.Reservation{}, Promoted: []*models.Reservation{}}
	}
	for _, r := range result.Expired {
		s.events.reservation(events.EventReservationExpired, r, changedBySystem, 0)
	}
	for _, r := range result.Promoted {
		s.events.reservation(events.EventReservationPromoted, r, changedBySystem, 0)
	}

	promoted, promoteErr := s.repo.PromoteWaiting(ctx, s.pickupWindow)
	for _, r := range promoted {
		s.events.reservation(events.EventReservationPromoted, r, changedBySystem, 0)
		result.Promoted = append(result.Promoted, r)
	}

	if len(result.Expired) > 0 || len(result.Promoted) > 0 {
		s.logger.Info().
			Int("expired", len(result.Expired)).
			Int("promoted", len(result.Promoted)).
			Msg("Reservation sweep")
	}
	return result, errors.Join(expireErr, promoteErr)
}

// ListByRange returns reservations created in [from, to).
func (s *ReservationService) ListByRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("range start must precede its end: %w", ErrValidation)
	}
	return s.repo.ListReservationsByRange(ctx, from, to)
}
