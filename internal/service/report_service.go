package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bibliotech/internal/domain"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Reservas"

var reportHeaders = []string{"ID", "Livro", "Leitor", "Status", "Data da reserva", "Prazo de retirada", "Atualizado em"}

// ReservationLister is the slice of the reservation workflow used by reports.
type ReservationLister interface {
	ListByRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
}

// ReportService builds the admin dashboard and spreadsheet exports.
type ReportService struct {
	stats        domain.StatsRepository
	reservations ReservationLister
	presence     domain.PresenceRepository
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewReportService(
	stats domain.StatsRepository,
	reservations ReservationLister,
	presence domain.PresenceRepository,
	logger *zerolog.Logger,
) *ReportService {
	return &ReportService{
		stats:        stats,
		reservations: reservations,
		presence:     presence,
		logger:       logger,
		now:          time.Now,
	}
}

// Dashboard returns the aggregate counters. A presence store failure only
// zeroes the online count.
func (s *ReportService) Dashboard(ctx context.Context) (*models.Stats, error) {
	stats, err := s.stats.Stats(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if s.presence != nil {
		online, err := s.presence.CountOnline(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to count online users")
		}
		stats.OnlineUsers = online
	}
	return stats, nil
}

// WriteReservationsXLSX writes the reservations created in [from, to) as a
// spreadsheet.
func (s *ReportService) WriteReservationsXLSX(ctx context.Context, w io.Writer, from, to time.Time) error {
	list, err := s.reservations.ListByRange(ctx, from, to)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
		_ = f.SetCellStyle(reportSheet, cell, cell, headerStyle)
	}

	for i, r := range list {
		row := i + 2
		expires := ""
		if r.ExpiresAt != nil {
			expires = r.ExpiresAt.Format(time.DateTime)
		}
		values := []interface{}{
			r.ID,
			r.BookTitle,
			r.UserName,
			r.Status,
			r.CreatedAt.Format(time.DateTime),
			expires,
			r.UpdatedAt.Format(time.DateTime),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(reportSheet, "A", "A", 8)
	_ = f.SetColWidth(reportSheet, "B", "C", 30)
	_ = f.SetColWidth(reportSheet, "D", "G", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing spreadsheet: %w", err)
	}
	return nil
}

// ExportReservations saves the spreadsheet into dir and returns its path.
func (s *ReportService) ExportReservations(ctx context.Context, dir string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	path := filepath.Join(dir, ReservationsReportName(from, to))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}
	defer file.Close()

	if err := s.WriteReservationsXLSX(ctx, file, from, to); err != nil {
		return "", err
	}

	s.logger.Info().Str("file_path", path).Msg("Excel file created")
	return path, nil
}
