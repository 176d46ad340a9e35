package domain

import (
	"context"
	"time"

	"bibliotech/internal/models"
)

type ReservationRepository interface {
	CreateReservation(ctx context.Context, userID, bookID int64, pickupWindow time.Duration) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id, userID int64, pickupWindow time.Duration) (*models.ReservationChange, error)
	CompleteReservation(ctx context.Context, id int64, loanPeriod time.Duration) (*models.Reservation, *models.Loan, error)
	PromoteNext(ctx context.Context, bookID int64, pickupWindow time.Duration) (*models.Reservation, error)
	PromoteWaiting(ctx context.Context, pickupWindow time.Duration) ([]*models.Reservation, error)
	ExpireOverdue(ctx context.Context, now time.Time, pickupWindow time.Duration) (*models.SweepResult, error)
	ListUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error)
	ListReservationsByRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
}

type CatalogRepository interface {
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	ListBooks(ctx context.Context, f models.BookFilter) (*models.BookPage, error)
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBook(ctx context.Context, book *models.Book) error
	SetBookStock(ctx context.Context, id, total int64) (*models.Book, error)
	CreateAuthor(ctx context.Context, author *models.Author) error
	GetAuthorByName(ctx context.Context, name string) (*models.Author, error)
	ListAuthors(ctx context.Context) ([]*models.Author, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, userID, bookID int64, period time.Duration) (*models.Loan, error)
	ReturnLoan(ctx context.Context, id int64, pickupWindow time.Duration) (*models.Loan, *models.Reservation, error)
	ListUserLoans(ctx context.Context, userID int64) ([]*models.Loan, error)
	ListOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error)
	MarkOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	ListBookReviews(ctx context.Context, bookID int64) (*models.ReviewList, error)
	DeleteReview(ctx context.Context, id, userID int64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	LinkGoogleAccount(ctx context.Context, userID int64, googleID string) error
	SetUserRole(ctx context.Context, userID int64, role string) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	EndSession(ctx context.Context, id string, at time.Time) error
}

type StatsRepository interface {
	Stats(ctx context.Context, now time.Time) (*models.Stats, error)
}

// PresenceRepository tracks who is online and throttles logins. It is backed
// by Redis with an in-memory fallback.
type PresenceRepository interface {
	MarkOnline(ctx context.Context, userID int64, ttl time.Duration) error
	MarkOffline(ctx context.Context, userID int64) error
	CountOnline(ctx context.Context) (int64, error)
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
