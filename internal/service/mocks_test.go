package service

import (
	"context"
	"time"

	"bibliotech/internal/auth"
	"bibliotech/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) CreateReservation(ctx context.Context, userID, bookID int64, w time.Duration) (*models.Reservation, error) {
	args := m.Called(ctx, userID, bookID, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockReservationRepo) CancelReservation(ctx context.Context, id, userID int64, w time.Duration) (*models.ReservationChange, error) {
	args := m.Called(ctx, id, userID, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationChange), args.Error(1)
}
func (m *mockReservationRepo) CompleteReservation(ctx context.Context, id int64, p time.Duration) (*models.Reservation, *models.Loan, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Reservation), args.Get(1).(*models.Loan), args.Error(2)
}
func (m *mockReservationRepo) PromoteNext(ctx context.Context, bookID int64, w time.Duration) (*models.Reservation, error) {
	args := m.Called(ctx, bookID, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockReservationRepo) PromoteWaiting(ctx context.Context, w time.Duration) ([]*models.Reservation, error) {
	args := m.Called(ctx, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}
func (m *mockReservationRepo) ExpireOverdue(ctx context.Context, now time.Time, w time.Duration) (*models.SweepResult, error) {
	args := m.Called(ctx, now, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepResult), args.Error(1)
}
func (m *mockReservationRepo) ListUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}
func (m *mockReservationRepo) ListReservationsByRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

type mockLoanRepo struct {
	mock.Mock
}

func (m *mockLoanRepo) CreateLoan(ctx context.Context, userID, bookID int64, p time.Duration) (*models.Loan, error) {
	args := m.Called(ctx, userID, bookID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}
func (m *mockLoanRepo) ReturnLoan(ctx context.Context, id int64, w time.Duration) (*models.Loan, *models.Reservation, error) {
	args := m.Called(ctx, id, w)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var promoted *models.Reservation
	if args.Get(1) != nil {
		promoted = args.Get(1).(*models.Reservation)
	}
	return args.Get(0).(*models.Loan), promoted, args.Error(2)
}
func (m *mockLoanRepo) ListUserLoans(ctx context.Context, userID int64) ([]*models.Loan, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.Loan), args.Error(1)
}
func (m *mockLoanRepo) ListOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]*models.Loan), args.Error(1)
}
func (m *mockLoanRepo) MarkOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) CreateReview(ctx context.Context, r *models.Review) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockReviewRepo) ListBookReviews(ctx context.Context, bookID int64) (*models.ReviewList, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewList), args.Error(1)
}
func (m *mockReviewRepo) DeleteReview(ctx context.Context, id, userID int64) error {
	return m.Called(ctx, id, userID).Error(0)
}

type mockCatalogRepo struct {
	mock.Mock
}

func (m *mockCatalogRepo) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}
func (m *mockCatalogRepo) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}
func (m *mockCatalogRepo) ListBooks(ctx context.Context, f models.BookFilter) (*models.BookPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookPage), args.Error(1)
}
func (m *mockCatalogRepo) CreateBook(ctx context.Context, b *models.Book) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockCatalogRepo) UpdateBook(ctx context.Context, b *models.Book) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockCatalogRepo) SetBookStock(ctx context.Context, id, total int64) (*models.Book, error) {
	args := m.Called(ctx, id, total)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}
func (m *mockCatalogRepo) CreateAuthor(ctx context.Context, a *models.Author) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockCatalogRepo) GetAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Author), args.Error(1)
}
func (m *mockCatalogRepo) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Author), args.Error(1)
}
func (m *mockCatalogRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCatalogRepo) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}
func (m *mockCatalogRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Category), args.Error(1)
}

type mockPromoter struct {
	mock.Mock
}

func (m *mockPromoter) PromoteQueue(ctx context.Context, bookID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	args := m.Called(ctx, googleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) LinkGoogleAccount(ctx context.Context, userID int64, googleID string) error {
	return m.Called(ctx, userID, googleID).Error(0)
}
func (m *mockUserRepo) SetUserRole(ctx context.Context, userID int64, role string) error {
	return m.Called(ctx, userID, role).Error(0)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) CreateSession(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionRepo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}
func (m *mockSessionRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}
func (m *mockSessionRepo) EndSession(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockPresence struct {
	mock.Mock
}

func (m *mockPresence) MarkOnline(ctx context.Context, userID int64, ttl time.Duration) error {
	return m.Called(ctx, userID, ttl).Error(0)
}
func (m *mockPresence) MarkOffline(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockPresence) CountOnline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockPresence) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockStatsRepo struct {
	mock.Mock
}

func (m *mockStatsRepo) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

type mockGoogle struct {
	mock.Mock
}

func (m *mockGoogle) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}
func (m *mockGoogle) Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.GoogleProfile), args.Error(1)
}

// recordingBus captures published event types.
type recordingBus struct {
	types []string
}

func (b *recordingBus) PublishJSON(eventType string, _ interface{}) error {
	b.types = append(b.types, eventType)
	return nil
}
