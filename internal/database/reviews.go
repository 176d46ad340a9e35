package database

import (
	"context"
	"fmt"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
)

// CreateReview stores a review. The (usuario_id, livro_id) unique constraint
// turns a second review of the same book into ErrConflict.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	if err := db.bookExists(ctx, db.DB, review.BookID); err != nil {
		return err
	}

	review.CreatedAt = storeNow()
	id, err := db.insertID(ctx, db.DB, db.insert(tableReviews).Rows(goqu.Record{
		colBookID:    review.BookID,
		colUserID:    review.UserID,
		"nota":       review.Score,
		"comentario": review.Comment,
		colCreatedAt: review.CreatedAt,
	}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("book %d already reviewed by user %d: %w", review.BookID, review.UserID, ErrConflict)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	review.ID = id
	return nil
}

// ListBookReviews returns the reviews of a book, newest first, with the
// average score.
func (db *DB) ListBookReviews(ctx context.Context, bookID int64) (*models.ReviewList, error) {
	if err := db.bookExists(ctx, db.DB, bookID); err != nil {
		return nil, err
	}

	reviews := make([]*models.Review, 0)
	query := db.from(goqu.T(tableReviews).As("av")).
		Join(goqu.T(tableUsers).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("av.usuario_id")))).
		Select(
			goqu.I("av.id"), goqu.I("av.livro_id"), goqu.I("av.usuario_id"), goqu.I("av.nota"),
			goqu.I("av.comentario"), goqu.I("av.criado_em"), goqu.I("u.nome").As("usuario_nome"),
		).
		Where(goqu.I("av.livro_id").Eq(bookID)).
		Order(goqu.I("av.criado_em").Desc(), goqu.I("av.id").Desc())
	if err := db.selectAll(ctx, db.DB, &reviews, query); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	list := &models.ReviewList{Reviews: reviews, Count: len(reviews)}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Score
		}
		avg := float64(sum) / float64(len(reviews))
		list.AverageScore = &avg
	}
	return list, nil
}

// DeleteReview removes a review written by userID.
func (db *DB) DeleteReview(ctx context.Context, id, userID int64) error {
	query, args, err := db.dialect.Delete(tableReviews).Prepared(true).
		Where(goqu.C(colID).Eq(id), goqu.C(colUserID).Eq(userID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("review %d: %w", id, ErrNotFound)
	}
	return nil
}
