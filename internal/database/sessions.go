package database

import (
	"context"
	"fmt"
	"time"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
)

func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	now := storeNow()
	session.CreatedAt = now
	session.LastSeen = now

	_, err := db.exec(ctx, db.DB, db.insert(tableSessions).Rows(goqu.Record{
		colID:           session.ID,
		colUserID:       session.UserID,
		colCreatedAt:    session.CreatedAt,
		"ultimo_acesso": session.LastSeen,
	}))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := db.get(ctx, db.DB, &session, db.from(tableSessions).Where(goqu.C(colID).Eq(id))); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", notFound(err))
	}
	return &session, nil
}

// TouchSession records activity on an open session.
func (db *DB) TouchSession(ctx context.Context, id string, at time.Time) error {
	n, err := db.exec(ctx, db.DB, db.update(tableSessions).
		Set(goqu.Record{"ultimo_acesso": at.UTC()}).
		Where(goqu.C(colID).Eq(id), goqu.C("encerrada_em").IsNull()))
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("open session %s: %w", id, ErrNotFound)
	}
	return nil
}

// EndSession closes a session; ending it twice is a no-op.
func (db *DB) EndSession(ctx context.Context, id string, at time.Time) error {
	_, err := db.exec(ctx, db.DB, db.update(tableSessions).
		Set(goqu.Record{"encerrada_em": at.UTC()}).
		Where(goqu.C(colID).Eq(id), goqu.C("encerrada_em").IsNull()))
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}
