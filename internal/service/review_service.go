package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bibliotech/internal/domain"
	"bibliotech/internal/events"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

type ReviewService struct {
	repo   domain.ReviewRepository
	events publisher
	logger *zerolog.Logger
}

func NewReviewService(repo domain.ReviewRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	return &ReviewService{
		repo:   repo,
		events: publisher{bus: eventBus, logger: logger},
		logger: logger,
	}
}

// ValidateReview checks the score range and the comment length in
// characters.
func ValidateReview(score int, comment string) error {
	if score < models.MinReviewScore || score > models.MaxReviewScore {
		return fmt.Errorf("nota must be between %d and %d: %w", models.MinReviewScore, models.MaxReviewScore, ErrValidation)
	}
	if utf8.RuneCountInString(comment) > models.MaxReviewCommentLength {
		return fmt.Errorf("comentario exceeds %d characters: %w", models.MaxReviewCommentLength, ErrValidation)
	}
	return nil
}

func (s *ReviewService) Create(ctx context.Context, userID, bookID int64, score int, comment string) (*models.Review, error) {
	comment = strings.TrimSpace(comment)
	if err := ValidateReview(score, comment); err != nil {
		return nil, err
	}

	review := &models.Review{BookID: bookID, UserID: userID, Score: score, Comment: comment}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.events.publish(events.EventReviewCreated, events.ReviewEventPayload{
		ReviewID: review.ID,
		BookID:   review.BookID,
		UserID:   review.UserID,
		Score:    review.Score,
	})
	return review, nil
}

func (s *ReviewService) List(ctx context.Context, bookID int64) (*models.ReviewList, error) {
	return s.repo.ListBookReviews(ctx, bookID)
}

// Delete removes the caller's own review.
func (s *ReviewService) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.DeleteReview(ctx, id, userID)
}
