package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

	t.Run("defaults to month so far", func(t *testing.T) {
		from, to, err := ParseDateRange("", "", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), from)
		assert.Equal(t, time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC), to)
	})

	t.Run("last day is inclusive", func(t *testing.T) {
		from, to, err := ParseDateRange("2026-03-01", "2026-03-31", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), to)
		assert.Equal(t, "reservas_2026-03-01_a_2026-03-31.xlsx", ReservationsReportName(from, to))
	})

	t.Run("single day", func(t *testing.T) {
		from, to, err := ParseDateRange("2026-05-10", "2026-05-10", now)
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, to.Sub(from))
	})

	t.Run("start after end", func(t *testing.T) {
		_, _, err := ParseDateRange("2026-05-10", "2026-05-01", now)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("future start defaults end to today", func(t *testing.T) {
		_, _, err := ParseDateRange("2026-06-01", "", now)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("bad dates", func(t *testing.T) {
		_, _, err := ParseDateRange("ontem", "", now)
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = ParseDateRange("", "20/05/2026", now)
		assert.ErrorIs(t, err, ErrValidation)
	})
}
