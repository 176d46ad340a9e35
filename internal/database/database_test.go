package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"bibliotech/internal/config"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name)}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func createTestBook(t *testing.T, db *DB, title string, copies int64) *models.Book {
	t.Helper()
	book := &models.Book{Title: title, TotalCopies: copies}
	require.NoError(t, db.CreateBook(context.Background(), book))
	return book
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	assert.Equal(t, config.DriverSQLite, db.Driver())
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	hash := "hash"
	user := &models.User{Name: "Ana", Email: "  Ana@Example.com ", PasswordHash: &hash}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, models.RoleReader, user.Role)

	t.Run("duplicate email", func(t *testing.T) {
		err := db.CreateUser(ctx, &models.User{Name: "Other", Email: "ANA@example.com"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := db.GetUserByEmail(ctx, "ana@EXAMPLE.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		require.NotNil(t, got.PasswordHash)
		assert.Equal(t, "hash", *got.PasswordHash)

		_, err = db.GetUserByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("google link and role", func(t *testing.T) {
		require.NoError(t, db.LinkGoogleAccount(ctx, user.ID, "g-123"))
		got, err := db.GetUserByGoogleID(ctx, "g-123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		require.NoError(t, db.SetUserRole(ctx, user.ID, models.RoleAdmin))
		got, err = db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAdmin())

		assert.ErrorIs(t, db.SetUserRole(ctx, 999, models.RoleAdmin), ErrNotFound)
	})
}

func TestSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "bia")

	session := &models.Session{ID: "s-1", UserID: user.ID}
	require.NoError(t, db.CreateSession(ctx, session))

	got, err := db.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, got.IsOpen())

	later := time.Now().Add(time.Minute)
	require.NoError(t, db.TouchSession(ctx, "s-1", later))

	require.NoError(t, db.EndSession(ctx, "s-1", later))
	require.NoError(t, db.EndSession(ctx, "s-1", later))

	got, err = db.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, got.IsOpen())

	assert.ErrorIs(t, db.TouchSession(ctx, "s-1", later), ErrNotFound)
	_, err = db.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := &models.Author{Name: "Machado de Assis"}
	require.NoError(t, db.CreateAuthor(ctx, author))
	category := &models.Category{Name: "Romance"}
	require.NoError(t, db.CreateCategory(ctx, category))
	assert.ErrorIs(t, db.CreateCategory(ctx, &models.Category{Name: "Romance"}), ErrConflict)

	isbn := "978-85-359-0277-7"
	year := 1899
	casmurro := &models.Book{
		Title:       "Dom Casmurro",
		ISBN:        &isbn,
		AuthorID:    &author.ID,
		CategoryID:  &category.ID,
		Year:        &year,
		PriceCents:  4990,
		TotalCopies: 2,
	}
	require.NoError(t, db.CreateBook(ctx, casmurro))
	createTestBook(t, db, "Iracema", 0)

	dup := &models.Book{Title: "Copy", ISBN: &isbn}
	assert.ErrorIs(t, db.CreateBook(ctx, dup), ErrConflict)

	t.Run("get detail", func(t *testing.T) {
		book, err := db.GetBook(ctx, casmurro.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), book.AvailableCopies)
		require.NotNil(t, book.AuthorName)
		assert.Equal(t, "Machado de Assis", *book.AuthorName)
		require.NotNil(t, book.CategoryName)
		assert.Equal(t, "Romance", *book.CategoryName)
		assert.Nil(t, book.AverageScore)

		_, err = db.GetBook(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		byISBN, err := db.GetBookByISBN(ctx, isbn)
		require.NoError(t, err)
		assert.Equal(t, casmurro.ID, byISBN.ID)
	})

	t.Run("filters", func(t *testing.T) {
		page, err := db.ListBooks(ctx, models.BookFilter{Query: "machado"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Books, 1)
		assert.Equal(t, "Dom Casmurro", page.Books[0].Title)

		page, err = db.ListBooks(ctx, models.BookFilter{AvailableOnly: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		page, err = db.ListBooks(ctx, models.BookFilter{CategoryID: category.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		page, err = db.ListBooks(ctx, models.BookFilter{Sort: models.SortTitle})
		require.NoError(t, err)
		require.Len(t, page.Books, 2)
		assert.Equal(t, "Dom Casmurro", page.Books[0].Title)
		assert.Equal(t, "Iracema", page.Books[1].Title)

		page, err = db.ListBooks(ctx, models.BookFilter{Page: 2, PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		require.Len(t, page.Books, 1)
		assert.Equal(t, "Iracema", page.Books[0].Title)
	})

	t.Run("update", func(t *testing.T) {
		casmurro.Description = "Bentinho e Capitu"
		require.NoError(t, db.UpdateBook(ctx, casmurro))
		book, err := db.GetBook(ctx, casmurro.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bentinho e Capitu", book.Description)

		assert.ErrorIs(t, db.UpdateBook(ctx, &models.Book{ID: 999, Title: "x"}), ErrNotFound)
	})

	t.Run("lists", func(t *testing.T) {
		authors, err := db.ListAuthors(ctx)
		require.NoError(t, err)
		assert.Len(t, authors, 1)

		categories, err := db.ListCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, categories, 1)

		got, err := db.GetAuthorByName(ctx, "Machado de Assis")
		require.NoError(t, err)
		assert.Equal(t, author.ID, got.ID)
		_, err = db.GetCategoryByName(ctx, "Poesia")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetBookStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "caio")
	book := createTestBook(t, db, "Vidas Secas", 2)

	_, err := db.CreateReservation(ctx, user.ID, book.ID, time.Hour)
	require.NoError(t, err)

	updated, err := db.SetBookStock(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.TotalCopies)
	assert.Equal(t, int64(4), updated.AvailableCopies)

	updated, err = db.SetBookStock(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.AvailableCopies)

	_, err = db.SetBookStock(ctx, book.ID, 0)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = db.SetBookStock(ctx, 999, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ana := createTestUser(t, db, "ana")
	bia := createTestUser(t, db, "bia")
	popular := createTestBook(t, db, "Popular", 1)
	quiet := createTestBook(t, db, "Quiet", 1)

	_, err := db.CreateReservation(ctx, ana.ID, popular.ID, time.Hour)
	require.NoError(t, err)
	_, err = db.CreateReservation(ctx, bia.ID, popular.ID, time.Hour)
	require.NoError(t, err)
	_, err = db.CreateLoan(ctx, bia.ID, quiet.ID, -time.Hour)
	require.NoError(t, err)

	stats, err := db.Stats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Books)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.ActiveLoans)
	assert.Equal(t, int64(1), stats.OverdueLoans)
	assert.Equal(t, int64(1), stats.ReservationsByStatus[models.ReservationReady])
	assert.Equal(t, int64(1), stats.ReservationsByStatus[models.ReservationWaiting])
	require.Len(t, stats.TopReserved, 1)
	assert.Equal(t, popular.ID, stats.TopReserved[0].BookID)
	assert.Equal(t, int64(2), stats.TopReserved[0].Reservations)
}
