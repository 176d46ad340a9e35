package database

import (
	"context"
	"fmt"
	"time"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
)

// Stats computes the dashboard aggregates. OnlineUsers is filled by the
// presence store, not here.
func (db *DB) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	stats := &models.Stats{ReservationsByStatus: make(map[string]int64)}
	var err error

	if stats.Books, err = db.count(ctx, db.DB, db.from(tableBooks)); err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	if stats.Users, err = db.count(ctx, db.DB, db.from(tableUsers)); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if stats.ActiveLoans, err = db.count(ctx, db.DB, db.from(tableLoans).
		Where(goqu.C(colStatus).In(models.LoanActive, models.LoanOverdue))); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	if stats.OverdueLoans, err = db.count(ctx, db.DB, db.from(tableLoans).Where(
		goqu.C(colStatus).In(models.LoanActive, models.LoanOverdue),
		goqu.C("data_prevista").Lt(now.UTC()),
	)); err != nil {
		return nil, fmt.Errorf("failed to count overdue loans: %w", err)
	}

	var byStatus []struct {
		Status string `db:"status"`
		Total  int64  `db:"total"`
	}
	query := db.from(tableReservations).
		Select(goqu.C(colStatus), goqu.COUNT(goqu.Star()).As("total")).
		GroupBy(goqu.C(colStatus))
	if err := db.selectAll(ctx, db.DB, &byStatus, query); err != nil {
		return nil, fmt.Errorf("failed to group reservations: %w", err)
	}
	for _, row := range byStatus {
		stats.ReservationsByStatus[row.Status] = row.Total
	}

	stats.TopReserved = make([]*models.BookRanking, 0, models.TopReservedBooks)
	top := db.from(goqu.T(tableReservations).As("r")).
		Join(goqu.T(tableBooks).As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("r.livro_id")))).
		Select(goqu.I("r.livro_id"), goqu.I("l.titulo"), goqu.COUNT(goqu.Star()).As("total")).
		GroupBy(goqu.I("r.livro_id"), goqu.I("l.titulo")).
		Order(goqu.L("total").Desc(), goqu.I("r.livro_id").Asc()).
		Limit(models.TopReservedBooks)
	if err := db.selectAll(ctx, db.DB, &stats.TopReserved, top); err != nil {
		return nil, fmt.Errorf("failed to rank books: %w", err)
	}

	return stats, nil
}
