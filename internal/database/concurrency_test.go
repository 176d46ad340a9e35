package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"bibliotech/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReservationsForLastCopy(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter()).Level(zerolog.WarnLevel)
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	book := createTestBook(t, db, "Ultimo exemplar", 1)

	const numGoroutines = 10
	users := make([]*models.User, numGoroutines)
	for i := range users {
		users[i] = createTestUser(t, db, fmt.Sprintf("reader%d", i))
	}

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan *models.Reservation, numGoroutines)
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(user *models.User) {
			defer wg.Done()
			r, err := db.CreateReservation(ctx, user.ID, book.ID, testWindow)
			if err != nil {
				errs <- err
				return
			}
			results <- r
		}(users[i])
	}

	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	ready, waiting := 0, 0
	for r := range results {
		switch r.Status {
		case models.ReservationReady:
			ready++
		case models.ReservationWaiting:
			waiting++
		}
	}
	assert.Equal(t, 1, ready, "exactly one reader gets the last copy")
	assert.Equal(t, numGoroutines-1, waiting)

	got, err := db.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AvailableCopies)
}
