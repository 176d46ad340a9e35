package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

func (db *DB) reservationQuery() *goqu.SelectDataset {
	return db.from(goqu.T(tableReservations).As("r")).
		Join(goqu.T(tableBooks).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("r.livro_id")))).
		Join(goqu.T(tableUsers).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.usuario_id")))).
		Select(
			goqu.I("r.id"), goqu.I("r.livro_id"), goqu.I("r.usuario_id"), goqu.I("r.status"),
			goqu.I("r.data_reserva"), goqu.I("r.data_expiracao"), goqu.I("r.atualizado_em"),
			goqu.I("r.versao"), goqu.I("l.titulo"), goqu.I("u.nome").As("usuario_nome"),
		)
}

func (db *DB) getReservation(ctx context.Context, q sqlx.QueryerContext, where ...goqu.Expression) (*models.Reservation, error) {
	var r models.Reservation
	if err := db.get(ctx, q, &r, db.reservationQuery().Where(where...)); err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", notFound(err))
	}
	return &r, nil
}

// CreateReservation reserves bookID for userID. When a copy can be taken the
// reservation starts disponivel with a pickup deadline, otherwise it joins
// the queue as aguardando. Both the copy and the duplicate checks happen in
// one transaction.
func (db *DB) CreateReservation(ctx context.Context, userID, bookID int64, pickupWindow time.Duration) (*models.Reservation, error) {
	var created *models.Reservation
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.bookExists(ctx, tx, bookID); err != nil {
			return err
		}

		active, err := db.count(ctx, tx, db.from(tableReservations).Where(
			goqu.C(colUserID).Eq(userID),
			goqu.C(colBookID).Eq(bookID),
			goqu.C(colStatus).In(models.ReservationWaiting, models.ReservationReady),
		))
		if err != nil {
			return fmt.Errorf("failed to check active reservations: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("active reservation exists for book %d: %w", bookID, ErrConflict)
		}

		taken, err := db.takeCopy(ctx, tx, bookID)
		if err != nil {
			return err
		}

		now := storeNow()
		r := &models.Reservation{
			BookID:    bookID,
			UserID:    userID,
			Status:    models.ReservationWaiting,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		if taken {
			expires := now.Add(pickupWindow)
			r.Status = models.ReservationReady
			r.ExpiresAt = &expires
		}

		id, err := db.insertID(ctx, tx, db.insert(tableReservations).Rows(goqu.Record{
			colBookID:        r.BookID,
			colUserID:        r.UserID,
			colStatus:        r.Status,
			"data_reserva":   r.CreatedAt,
			"data_expiracao": nullableTime(r.ExpiresAt),
			colUpdatedAt:     r.UpdatedAt,
			colVersion:       r.Version,
		}))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("active reservation exists for book %d: %w", bookID, ErrConflict)
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		r.ID = id
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created.Status == models.ReservationWaiting {
		if pos, err := db.QueuePosition(ctx, created); err == nil {
			created.QueuePosition = pos
		}
	}
	return created, nil
}

// transition moves r to the target status if the row still has the status
// and version r was read with. A row changed in between yields
// ErrConcurrentModification, which also matches ErrInvalidTransition.
func (db *DB) transition(ctx context.Context, tx *sqlx.Tx, r *models.Reservation, to string, extra goqu.Record) error {
	if !models.CanTransition(r.Status, to) {
		return fmt.Errorf("reservation %d %s -> %s: %w", r.ID, r.Status, to, ErrInvalidTransition)
	}

	now := storeNow()
	set := goqu.Record{
		colStatus:    to,
		colUpdatedAt: now,
		colVersion:   goqu.L("versao + 1"),
	}
	for k, v := range extra {
		set[k] = v
	}

	n, err := db.exec(ctx, tx, db.update(tableReservations).Set(set).Where(
		goqu.C(colID).Eq(r.ID),
		goqu.C(colStatus).Eq(r.Status),
		goqu.C(colVersion).Eq(r.Version),
	))
	if err != nil {
		return fmt.Errorf("failed to update reservation %d: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("reservation %d at version %d: %w: %w", r.ID, r.Version, ErrConcurrentModification, ErrInvalidTransition)
	}

	r.Status = to
	r.UpdatedAt = now
	r.Version++
	return nil
}

// CancelReservation cancels a reservation owned by userID. A reservation of
// another user is reported as not found. Cancelling a disponivel reservation
// hands its copy to the next reader in the queue.
func (db *DB) CancelReservation(ctx context.Context, id, userID int64, pickupWindow time.Duration) (*models.ReservationChange, error) {
	change := &models.ReservationChange{}
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		r, err := db.getReservation(ctx, tx, goqu.I("r.id").Eq(id), goqu.I("r.usuario_id").Eq(userID))
		if err != nil {
			return err
		}

		held := r.Status == models.ReservationReady
		if err := db.transition(ctx, tx, r, models.ReservationCancelled, nil); err != nil {
			return err
		}
		change.Reservation = r

		if held {
			change.Promoted, err = db.handOverCopy(ctx, tx, r.BookID, pickupWindow)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// handOverCopy releases one copy of bookID and immediately offers it to the
// oldest waiting reservation, if any.
func (db *DB) handOverCopy(ctx context.Context, tx *sqlx.Tx, bookID int64, pickupWindow time.Duration) (*models.Reservation, error) {
	if err := db.releaseCopy(ctx, tx, bookID); err != nil {
		return nil, err
	}
	promoted, err := db.promoteNext(ctx, tx, bookID, pickupWindow)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAvailable) {
		return nil, nil
	}
	return promoted, err
}

// promoteNext moves the oldest aguardando reservation of bookID to
// disponivel. ErrNotFound means nobody is waiting, ErrNotAvailable means no
// copy is free.
func (db *DB) promoteNext(ctx context.Context, tx *sqlx.Tx, bookID int64, pickupWindow time.Duration) (*models.Reservation, error) {
	var next models.Reservation
	err := db.get(ctx, tx, &next, db.reservationQuery().
		Where(goqu.I("r.livro_id").Eq(bookID), goqu.I("r.status").Eq(models.ReservationWaiting)).
		Order(goqu.I("r.data_reserva").Asc(), goqu.I("r.id").Asc()).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("no waiting reservation for book %d: %w", bookID, notFound(err))
	}

	taken, err := db.takeCopy(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if !taken {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNotAvailable)
	}

	expires := storeNow().Add(pickupWindow)
	if err := db.transition(ctx, tx, &next, models.ReservationReady, goqu.Record{"data_expiracao": expires}); err != nil {
		return nil, err
	}
	next.ExpiresAt = &expires
	return &next, nil
}

// PromoteNext promotes the head of the queue for bookID.
func (db *DB) PromoteNext(ctx context.Context, bookID int64, pickupWindow time.Duration) (*models.Reservation, error) {
	var promoted *models.Reservation
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.bookExists(ctx, tx, bookID); err != nil {
			return err
		}
		var err error
		promoted, err = db.promoteNext(ctx, tx, bookID, pickupWindow)
		return err
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// PromoteWaiting promotes queued reservations of every book that has free
// copies, as many as the copies allow.
func (db *DB) PromoteWaiting(ctx context.Context, pickupWindow time.Duration) ([]*models.Reservation, error) {
	var bookIDs []int64
	query := db.from(goqu.T(tableReservations).As("r")).
		Join(goqu.T(tableBooks).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("r.livro_id")))).
		Where(goqu.I("r.status").Eq(models.ReservationWaiting), goqu.I("l.exemplares_disponiveis").Gt(0)).
		Select(goqu.I("r.livro_id")).
		Distinct()
	if err := db.selectAll(ctx, db.DB, &bookIDs, query); err != nil {
		return nil, fmt.Errorf("failed to find books with free copies: %w", err)
	}

	promoted := make([]*models.Reservation, 0)
	for _, bookID := range bookIDs {
		for {
			r, err := db.PromoteNext(ctx, bookID, pickupWindow)
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAvailable) {
				break
			}
			if err != nil {
				return promoted, err
			}
			promoted = append(promoted, r)
		}
	}
	return promoted, nil
}

// CompleteReservation records the pickup of a disponivel reservation. The
// held copy becomes an active loan due after loanPeriod.
func (db *DB) CompleteReservation(ctx context.Context, id int64, loanPeriod time.Duration) (*models.Reservation, *models.Loan, error) {
	var (
		reservation *models.Reservation
		loan        *models.Loan
	)
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		r, err := db.getReservation(ctx, tx, goqu.I("r.id").Eq(id))
		if err != nil {
			return err
		}
		if err := db.transition(ctx, tx, r, models.ReservationCompleted, nil); err != nil {
			return err
		}
		reservation = r

		loan = &models.Loan{
			BookID:        r.BookID,
			UserID:        r.UserID,
			ReservationID: &r.ID,
			BookTitle:     r.BookTitle,
			UserName:      r.UserName,
		}
		return db.insertLoan(ctx, tx, loan, loanPeriod)
	})
	if err != nil {
		return nil, nil, err
	}
	return reservation, loan, nil
}

// ExpireOverdue expires every disponivel reservation whose pickup deadline is
// before now. Each reservation is handled in its own transaction so one
// failure does not hold back the rest.
func (db *DB) ExpireOverdue(ctx context.Context, now time.Time, pickupWindow time.Duration) (*models.SweepResult, error) {
	var overdue []*models.Reservation
	query := db.reservationQuery().
		Where(
			goqu.I("r.status").Eq(models.ReservationReady),
			goqu.I("r.data_expiracao").Lt(now.UTC()),
		).
		Order(goqu.I("r.data_expiracao").Asc(), goqu.I("r.id").Asc())
	if err := db.selectAll(ctx, db.DB, &overdue, query); err != nil {
		return nil, fmt.Errorf("failed to find overdue reservations: %w", err)
	}

	result := &models.SweepResult{
		Expired:  make([]*models.Reservation, 0, len(overdue)),
		Promoted: make([]*models.Reservation, 0),
	}
	var errs []error
	for _, r := range overdue {
		err := db.inTx(ctx, func(tx *sqlx.Tx) error {
			if err := db.transition(ctx, tx, r, models.ReservationExpired, nil); err != nil {
				return err
			}
			promoted, err := db.handOverCopy(ctx, tx, r.BookID, pickupWindow)
			if err != nil {
				return err
			}
			if promoted != nil {
				result.Promoted = append(result.Promoted, promoted)
			}
			return nil
		})
		if errors.Is(err, ErrInvalidTransition) {
			// Picked up or cancelled since the scan.
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("expire reservation %d: %w", r.ID, err))
			continue
		}
		result.Expired = append(result.Expired, r)
	}
	return result, errors.Join(errs...)
}

// ListUserReservations returns all reservations of userID, newest first,
// with queue positions for the waiting ones.
func (db *DB) ListUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error) {
	list := make([]*models.Reservation, 0)
	query := db.reservationQuery().
		Where(goqu.I("r.usuario_id").Eq(userID)).
		Order(goqu.I("r.data_reserva").Desc(), goqu.I("r.id").Desc())
	if err := db.selectAll(ctx, db.DB, &list, query); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	for _, r := range list {
		if r.Status != models.ReservationWaiting {
			continue
		}
		pos, err := db.QueuePosition(ctx, r)
		if err != nil {
			return nil, err
		}
		r.QueuePosition = pos
	}
	return list, nil
}

// QueuePosition returns the 1-based place of a waiting reservation in its
// book queue, ordered by creation time then id. The creation time is read
// back from the stored row.
func (db *DB) QueuePosition(ctx context.Context, r *models.Reservation) (int, error) {
	createdAt := db.from(goqu.T(tableReservations).As("own")).
		Select(goqu.I("own.data_reserva")).
		Where(goqu.I("own.id").Eq(r.ID))

	n, err := db.count(ctx, db.DB, db.from(goqu.T(tableReservations).As("q")).Where(
		goqu.I("q.livro_id").Eq(r.BookID),
		goqu.I("q.status").Eq(models.ReservationWaiting),
		goqu.Or(
			goqu.I("q.data_reserva").Lt(createdAt),
			goqu.And(goqu.I("q.data_reserva").Eq(createdAt), goqu.I("q.id").Lte(r.ID)),
		),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to compute queue position: %w", err)
	}
	return int(n), nil
}

// ListReservationsByRange returns reservations created in [from, to).
func (db *DB) ListReservationsByRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	list := make([]*models.Reservation, 0)
	query := db.reservationQuery().
		Where(goqu.I("r.data_reserva").Gte(from.UTC()), goqu.I("r.data_reserva").Lt(to.UTC())).
		Order(goqu.I("r.data_reserva").Asc(), goqu.I("r.id").Asc())
	if err := db.selectAll(ctx, db.DB, &list, query); err != nil {
		return nil, fmt.Errorf("failed to list reservations by range: %w", err)
	}
	return list, nil
}
