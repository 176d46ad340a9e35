package database

import (
	"context"
	"fmt"
	"time"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

func (db *DB) loanQuery() *goqu.SelectDataset {
	return db.from(goqu.T(tableLoans).As("e")).
		Join(goqu.T(tableBooks).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("e.livro_id")))).
		Join(goqu.T(tableUsers).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("e.usuario_id")))).
		Select(
			goqu.I("e.id"), goqu.I("e.livro_id"), goqu.I("e.usuario_id"), goqu.I("e.reserva_id"),
			goqu.I("e.status"), goqu.I("e.data_emprestimo"), goqu.I("e.data_prevista"),
			goqu.I("e.data_devolucao"), goqu.I("l.titulo"), goqu.I("u.nome").As("usuario_nome"),
		)
}

func (db *DB) insertLoan(ctx context.Context, tx *sqlx.Tx, loan *models.Loan, period time.Duration) error {
	now := storeNow()
	loan.Status = models.LoanActive
	loan.LoanedAt = now
	loan.DueAt = now.Add(period)

	var reservationID any
	if loan.ReservationID != nil {
		reservationID = *loan.ReservationID
	}

	id, err := db.insertID(ctx, tx, db.insert(tableLoans).Rows(goqu.Record{
		colBookID:         loan.BookID,
		colUserID:         loan.UserID,
		"reserva_id":      reservationID,
		colStatus:         loan.Status,
		"data_emprestimo": loan.LoanedAt,
		"data_prevista":   loan.DueAt,
	}))
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	loan.ID = id
	return nil
}

// CreateLoan lends a shelf copy of bookID directly, without a reservation.
func (db *DB) CreateLoan(ctx context.Context, userID, bookID int64, period time.Duration) (*models.Loan, error) {
	loan := &models.Loan{BookID: bookID, UserID: userID}
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.bookExists(ctx, tx, bookID); err != nil {
			return err
		}
		if _, err := db.getUser(ctx, tx, goqu.C(colID).Eq(userID)); err != nil {
			return err
		}
		taken, err := db.takeCopy(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !taken {
			return fmt.Errorf("book %d: %w", bookID, ErrNotAvailable)
		}
		return db.insertLoan(ctx, tx, loan, period)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (db *DB) getLoan(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Loan, error) {
	var loan models.Loan
	if err := db.get(ctx, q, &loan, db.loanQuery().Where(goqu.I("e.id").Eq(id))); err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, notFound(err))
	}
	return &loan, nil
}

// ReturnLoan closes an outstanding loan, puts the copy back and offers it to
// the next waiting reservation.
func (db *DB) ReturnLoan(ctx context.Context, id int64, pickupWindow time.Duration) (*models.Loan, *models.Reservation, error) {
	var (
		loan     *models.Loan
		promoted *models.Reservation
	)
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = db.getLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if !loan.IsOut() {
			return fmt.Errorf("loan %d is %s: %w", id, loan.Status, ErrInvalidTransition)
		}

		now := storeNow()
		n, err := db.exec(ctx, tx, db.update(tableLoans).Set(goqu.Record{
			colStatus:        models.LoanReturned,
			"data_devolucao": now,
		}).Where(goqu.C(colID).Eq(id), goqu.C(colStatus).Eq(loan.Status)))
		if err != nil {
			return fmt.Errorf("failed to return loan %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("loan %d changed concurrently: %w", id, ErrInvalidTransition)
		}
		loan.Status = models.LoanReturned
		loan.ReturnedAt = &now

		promoted, err = db.handOverCopy(ctx, tx, loan.BookID, pickupWindow)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return loan, promoted, nil
}

func (db *DB) ListUserLoans(ctx context.Context, userID int64) ([]*models.Loan, error) {
	loans := make([]*models.Loan, 0)
	query := db.loanQuery().
		Where(goqu.I("e.usuario_id").Eq(userID)).
		Order(goqu.I("e.data_emprestimo").Desc(), goqu.I("e.id").Desc())
	if err := db.selectAll(ctx, db.DB, &loans, query); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListOverdueLoans returns loans still out after their due date.
func (db *DB) ListOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	loans := make([]*models.Loan, 0)
	query := db.loanQuery().
		Where(
			goqu.I("e.status").In(models.LoanActive, models.LoanOverdue),
			goqu.I("e.data_prevista").Lt(now.UTC()),
		).
		Order(goqu.I("e.data_prevista").Asc())
	if err := db.selectAll(ctx, db.DB, &loans, query); err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loans, nil
}

// MarkOverdueLoans flags active loans past their due date as atrasado and
// returns them.
func (db *DB) MarkOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	var marked []*models.Loan
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		candidates := make([]*models.Loan, 0)
		query := db.loanQuery().Where(
			goqu.I("e.status").Eq(models.LoanActive),
			goqu.I("e.data_prevista").Lt(now.UTC()),
		)
		if err := db.selectAll(ctx, tx, &candidates, query); err != nil {
			return fmt.Errorf("failed to find overdue loans: %w", err)
		}

		for _, loan := range candidates {
			n, err := db.exec(ctx, tx, db.update(tableLoans).
				Set(goqu.Record{colStatus: models.LoanOverdue}).
				Where(goqu.C(colID).Eq(loan.ID), goqu.C(colStatus).Eq(models.LoanActive)))
			if err != nil {
				return fmt.Errorf("failed to mark loan %d overdue: %w", loan.ID, err)
			}
			if n == 1 {
				loan.Status = models.LoanOverdue
				marked = append(marked, loan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}
