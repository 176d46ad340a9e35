package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bibliotech/internal/database"
	"bibliotech/internal/domain"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

// QueuePromoter hands newly added copies to waiting readers.
type QueuePromoter interface {
	PromoteQueue(ctx context.Context, bookID int64) ([]*models.Reservation, error)
}

type CatalogService struct {
	repo     domain.CatalogRepository
	promoter QueuePromoter
	logger   *zerolog.Logger
}

func NewCatalogService(repo domain.CatalogRepository, promoter QueuePromoter, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:     repo,
		promoter: promoter,
		logger:   logger,
	}
}

func (s *CatalogService) ListBooks(ctx context.Context, f models.BookFilter) (*models.BookPage, error) {
	return s.repo.ListBooks(ctx, f)
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func validateBook(book *models.Book) error {
	book.Title = strings.TrimSpace(book.Title)
	switch {
	case book.Title == "":
		return fmt.Errorf("titulo is required: %w", ErrValidation)
	case book.TotalCopies < 0:
		return fmt.Errorf("total_exemplares must not be negative: %w", ErrValidation)
	case book.PriceCents < 0:
		return fmt.Errorf("preco must not be negative: %w", ErrValidation)
	}
	if book.ISBN != nil && strings.TrimSpace(*book.ISBN) == "" {
		book.ISBN = nil
	}
	return nil
}

func (s *CatalogService) CreateBook(ctx context.Context, book *models.Book) error {
	if err := validateBook(book); err != nil {
		return err
	}
	return s.repo.CreateBook(ctx, book)
}

// UpdateBook changes descriptive fields and returns the stored book.
func (s *CatalogService) UpdateBook(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := validateBook(book); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBook(ctx, book); err != nil {
		return nil, err
	}
	return s.repo.GetBook(ctx, book.ID)
}

// SetStock sets the number of owned copies. New copies go to the waiting
// queue first.
func (s *CatalogService) SetStock(ctx context.Context, id, total int64) (*models.Book, error) {
	if total < 0 {
		return nil, fmt.Errorf("total_exemplares must not be negative: %w", ErrValidation)
	}
	book, err := s.repo.SetBookStock(ctx, id, total)
	if err != nil {
		return nil, err
	}
	if s.promoter == nil || book.AvailableCopies == 0 {
		return book, nil
	}

	promoted, err := s.promoter.PromoteQueue(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("book_id", id).Msg("Failed to promote queue after stock change")
	}
	if len(promoted) == 0 {
		return book, nil
	}
	return s.repo.GetBook(ctx, id)
}

func (s *CatalogService) CreateAuthor(ctx context.Context, author *models.Author) error {
	author.Name = strings.TrimSpace(author.Name)
	if author.Name == "" {
		return fmt.Errorf("nome is required: %w", ErrValidation)
	}
	return s.repo.CreateAuthor(ctx, author)
}

func (s *CatalogService) CreateCategory(ctx context.Context, category *models.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return fmt.Errorf("nome is required: %w", ErrValidation)
	}
	return s.repo.CreateCategory(ctx, category)
}

func (s *CatalogService) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	return s.repo.ListAuthors(ctx)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.repo.ListCategories(ctx)
}

// SeedResult counts what a seed run created; existing rows are skipped.
type SeedResult struct {
	Categories int `json:"categorias"`
	Authors    int `json:"autores"`
	Books      int `json:"livros"`
	Skipped    int `json:"ignorados"`
}

// Seed loads a catalog file. Categories and authors are matched by name and
// books by ISBN, so running it twice creates nothing new.
func (s *CatalogService) Seed(ctx context.Context, seed *models.CatalogSeed) (*SeedResult, error) {
	result := &SeedResult{}
	categories := make(map[string]int64)
	authors := make(map[string]int64)

	for _, name := range seed.Categories {
		existing, err := s.repo.GetCategoryByName(ctx, name)
		switch {
		case err == nil:
			categories[name] = existing.ID
		case errors.Is(err, database.ErrNotFound):
			c := &models.Category{Name: name}
			if err := s.repo.CreateCategory(ctx, c); err != nil {
				return result, fmt.Errorf("seed category %q: %w", name, err)
			}
			categories[name] = c.ID
			result.Categories++
		default:
			return result, err
		}
	}

	for _, a := range seed.Authors {
		existing, err := s.repo.GetAuthorByName(ctx, a.Name)
		switch {
		case err == nil:
			authors[a.Name] = existing.ID
		case errors.Is(err, database.ErrNotFound):
			author := &models.Author{Name: a.Name, Biography: a.Biography}
			if err := s.repo.CreateAuthor(ctx, author); err != nil {
				return result, fmt.Errorf("seed author %q: %w", a.Name, err)
			}
			authors[a.Name] = author.ID
			result.Authors++
		default:
			return result, err
		}
	}

	for _, b := range seed.Books {
		if b.ISBN != "" {
			_, err := s.repo.GetBookByISBN(ctx, b.ISBN)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, database.ErrNotFound) {
				return result, err
			}
		}

		book := &models.Book{
			Title:       b.Title,
			PriceCents:  b.PriceCents,
			TotalCopies: b.Copies,
			Description: b.Description,
		}
		if b.ISBN != "" {
			isbn := b.ISBN
			book.ISBN = &isbn
		}
		if b.Year > 0 {
			year := b.Year
			book.Year = &year
		}
		if id, ok := authors[b.Author]; ok {
			book.AuthorID = &id
		}
		if id, ok := categories[b.Category]; ok {
			book.CategoryID = &id
		}
		if err := s.CreateBook(ctx, book); err != nil {
			return result, fmt.Errorf("seed book %q: %w", b.Title, err)
		}
		result.Books++
	}

	s.logger.Info().
		Int("categories", result.Categories).
		Int("authors", result.Authors).
		Int("books", result.Books).
		Int("skipped", result.Skipped).
		Msg("Catalog seeded")
	return result, nil
}
