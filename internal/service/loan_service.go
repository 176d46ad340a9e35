package service

import (
	"context"
	"fmt"
	"time"

	"bibliotech/internal/domain"
	"bibliotech/internal/events"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

type LoanService struct {
	repo         domain.LoanRepository
	events       publisher
	period       time.Duration
	pickupWindow time.Duration
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewLoanService(
	repo domain.LoanRepository,
	eventBus domain.EventPublisher,
	period, pickupWindow time.Duration,
	logger *zerolog.Logger,
) *LoanService {
	if period <= 0 {
		period = models.DefaultLoanPeriod
	}
	if pickupWindow <= 0 {
		pickupWindow = models.DefaultPickupWindow
	}
	return &LoanService{
		repo:         repo,
		events:       publisher{bus: eventBus, logger: logger},
		period:       period,
		pickupWindow: pickupWindow,
		logger:       logger,
		now:          time.Now,
	}
}

// Create lends a shelf copy to userID without a reservation.
func (s *LoanService) Create(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	if userID <= 0 || bookID <= 0 {
		return nil, fmt.Errorf("usuario_id and livro_id are required: %w", ErrValidation)
	}
	loan, err := s.repo.CreateLoan(ctx, userID, bookID, s.period)
	if err != nil {
		return nil, err
	}
	s.events.loan(events.EventLoanCreated, loan)
	return loan, nil
}

// Return closes a loan. The freed copy may be handed to the next reader in
// the queue, which is returned as well.
func (s *LoanService) Return(ctx context.Context, id, adminID int64) (*models.Loan, *models.Reservation, error) {
	loan, promoted, err := s.repo.ReturnLoan(ctx, id, s.pickupWindow)
	if err != nil {
		return nil, nil, err
	}
	s.events.loan(events.EventLoanReturned, loan)
	s.events.reservation(events.EventReservationPromoted, promoted, changedByAdmin, adminID)
	return loan, promoted, nil
}

func (s *LoanService) ListForUser(ctx context.Context, userID int64) ([]*models.Loan, error) {
	return s.repo.ListUserLoans(ctx, userID)
}

func (s *LoanService) ListOverdue(ctx context.Context) ([]*models.Loan, error) {
	return s.repo.ListOverdueLoans(ctx, s.now())
}

// MarkOverdue flags loans past their due date.
func (s *LoanService) MarkOverdue(ctx context.Context) ([]*models.Loan, error) {
	marked, err := s.repo.MarkOverdueLoans(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for _, loan := range marked {
		s.events.loan(events.EventLoanOverdue, loan)
	}
	if len(marked) > 0 {
		s.logger.Info().Int("count", len(marked)).Msg("Loans marked overdue")
	}
	return marked, nil
}
