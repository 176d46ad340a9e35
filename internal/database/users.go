package database

import (
	"context"
	"fmt"
	"strings"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleReader
	}
	user.CreatedAt = storeNow()

	id, err := db.insertID(ctx, db.DB, db.insert(tableUsers).Rows(goqu.Record{
		"nome":       user.Name,
		"email":      user.Email,
		"senha_hash": nullableString(user.PasswordHash),
		"google_id":  nullableString(user.GoogleID),
		"papel":      user.Role,
		colCreatedAt: user.CreatedAt,
	}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, db.DB, goqu.C(colID).Eq(id))
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, db.DB, goqu.C("email").Eq(strings.ToLower(strings.TrimSpace(email))))
}

func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return db.getUser(ctx, db.DB, goqu.C("google_id").Eq(googleID))
}

func (db *DB) getUser(ctx context.Context, q sqlx.QueryerContext, where goqu.Expression) (*models.User, error) {
	var user models.User
	if err := db.get(ctx, q, &user, db.from(tableUsers).Where(where)); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	return &user, nil
}

// LinkGoogleAccount attaches a Google identity to an existing account.
func (db *DB) LinkGoogleAccount(ctx context.Context, userID int64, googleID string) error {
	n, err := db.exec(ctx, db.DB, db.update(tableUsers).
		Set(goqu.Record{"google_id": googleID}).
		Where(goqu.C(colID).Eq(userID)))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("google account already linked: %w", ErrConflict)
		}
		return fmt.Errorf("failed to link google account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

func (db *DB) SetUserRole(ctx context.Context, userID int64, role string) error {
	n, err := db.exec(ctx, db.DB, db.update(tableUsers).
		Set(goqu.Record{"papel": role}).
		Where(goqu.C(colID).Eq(userID)))
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}
