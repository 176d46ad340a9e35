package service

import (
	"context"
	"io"
	"testing"
	"time"

	"bibliotech/internal/database"
	"bibliotech/internal/events"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoanService(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	period := 14 * 24 * time.Hour

	t.Run("create", func(t *testing.T) {
		repo := new(mockLoanRepo)
		bus := &recordingBus{}
		s := NewLoanService(repo, bus, period, window, &logger)

		loan := &models.Loan{ID: 1, Status: models.LoanActive}
		repo.On("CreateLoan", ctx, int64(2), int64(3), period).Return(loan, nil).Once()
		repo.On("CreateLoan", ctx, int64(2), int64(4), period).Return(nil, database.ErrNotAvailable).Once()

		got, err := s.Create(ctx, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, loan, got)
		assert.Equal(t, []string{events.EventLoanCreated}, bus.types)

		_, err = s.Create(ctx, 2, 4)
		assert.ErrorIs(t, err, database.ErrNotAvailable)

		_, err = s.Create(ctx, 0, 4)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("return promotes", func(t *testing.T) {
		repo := new(mockLoanRepo)
		bus := &recordingBus{}
		s := NewLoanService(repo, bus, period, window, &logger)

		loan := &models.Loan{ID: 1, Status: models.LoanReturned}
		promoted := &models.Reservation{ID: 5, Status: models.ReservationReady}
		repo.On("ReturnLoan", ctx, int64(1), window).Return(loan, promoted, nil).Once()

		gotLoan, gotPromoted, err := s.Return(ctx, 1, 99)
		require.NoError(t, err)
		assert.Equal(t, loan, gotLoan)
		assert.Equal(t, promoted, gotPromoted)
		assert.Equal(t, []string{events.EventLoanReturned, events.EventReservationPromoted}, bus.types)
	})

	t.Run("return without queue", func(t *testing.T) {
		repo := new(mockLoanRepo)
		bus := &recordingBus{}
		s := NewLoanService(repo, bus, period, window, &logger)

		repo.On("ReturnLoan", ctx, int64(1), window).Return(&models.Loan{ID: 1}, nil, nil).Once()

		_, promoted, err := s.Return(ctx, 1, 99)
		require.NoError(t, err)
		assert.Nil(t, promoted)
		assert.Equal(t, []string{events.EventLoanReturned}, bus.types)
	})

	t.Run("mark overdue", func(t *testing.T) {
		repo := new(mockLoanRepo)
		bus := &recordingBus{}
		s := NewLoanService(repo, bus, period, window, &logger)

		repo.On("MarkOverdueLoans", ctx, mock.Anything).Return([]*models.Loan{{ID: 1}, {ID: 2}}, nil).Once()

		marked, err := s.MarkOverdue(ctx)
		require.NoError(t, err)
		assert.Len(t, marked, 2)
		assert.Equal(t, []string{events.EventLoanOverdue, events.EventLoanOverdue}, bus.types)
	})

	t.Run("lists", func(t *testing.T) {
		repo := new(mockLoanRepo)
		s := NewLoanService(repo, nil, 0, 0, &logger)

		repo.On("ListUserLoans", ctx, int64(2)).Return([]*models.Loan{{ID: 1}}, nil).Once()
		repo.On("ListOverdueLoans", ctx, mock.Anything).Return([]*models.Loan{}, nil).Once()

		loans, err := s.ListForUser(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, loans, 1)

		overdue, err := s.ListOverdue(ctx)
		require.NoError(t, err)
		assert.Empty(t, overdue)
	})
}
