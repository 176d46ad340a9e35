package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bibliotech/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

func (db *DB) bookQuery() *goqu.SelectDataset {
	return db.from(goqu.T(tableBooks).As("l")).
		LeftJoin(goqu.T(tableAuthors).As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("l.autor_id")))).
		LeftJoin(goqu.T(tableCategories).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("l.categoria_id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.titulo"), goqu.I("l.isbn"), goqu.I("l.autor_id"),
			goqu.I("l.categoria_id"), goqu.I("l.ano_publicacao"), goqu.I("l.preco"),
			goqu.I("l.total_exemplares"), goqu.I("l.exemplares_disponiveis"),
			goqu.I("l.descricao"), goqu.I("l.criado_em"),
			goqu.I("a.nome").As("autor_nome"),
			goqu.I("c.nome").As("categoria_nome"),
			goqu.L("(SELECT AVG(av.nota) FROM avaliacoes av WHERE av.livro_id = l.id)").As("media_avaliacoes"),
			goqu.L("(SELECT COUNT(*) FROM avaliacoes av WHERE av.livro_id = l.id)").As("total_avaliacoes"),
		)
}

func (db *DB) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return db.getBook(ctx, db.DB, id)
}

func (db *DB) getBook(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Book, error) {
	var book models.Book
	if err := db.get(ctx, q, &book, db.bookQuery().Where(goqu.I("l.id").Eq(id))); err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, notFound(err))
	}
	return &book, nil
}

func (db *DB) bookExists(ctx context.Context, q sqlx.QueryerContext, id int64) error {
	n, err := db.count(ctx, q, db.from(tableBooks).Where(goqu.C(colID).Eq(id)))
	if err != nil {
		return fmt.Errorf("failed to check book %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return nil
}

func bookFilterWhere(f models.BookFilter) []exp.Expression {
	var where []exp.Expression
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		where = append(where, goqu.Or(
			goqu.L("LOWER(l.titulo) LIKE ?", pattern),
			goqu.L("LOWER(a.nome) LIKE ?", pattern),
		))
	}
	if f.CategoryID > 0 {
		where = append(where, goqu.I("l.categoria_id").Eq(f.CategoryID))
	}
	if f.AuthorID > 0 {
		where = append(where, goqu.I("l.autor_id").Eq(f.AuthorID))
	}
	if f.AvailableOnly {
		where = append(where, goqu.I("l.exemplares_disponiveis").Gt(0))
	}
	return where
}

func bookOrder(sort string) []exp.OrderedExpression {
	switch sort {
	case models.SortYear:
		return []exp.OrderedExpression{goqu.I("l.ano_publicacao").Desc(), goqu.I("l.id").Asc()}
	case models.SortPrice:
		return []exp.OrderedExpression{goqu.I("l.preco").Asc(), goqu.I("l.id").Asc()}
	case models.SortRecent:
		return []exp.OrderedExpression{goqu.I("l.criado_em").Desc(), goqu.I("l.id").Desc()}
	default:
		return []exp.OrderedExpression{goqu.I("l.titulo").Asc(), goqu.I("l.id").Asc()}
	}
}

// ListBooks returns one page of the catalog and the total number of matches.
func (db *DB) ListBooks(ctx context.Context, f models.BookFilter) (*models.BookPage, error) {
	f.Normalize()
	where := bookFilterWhere(f)

	countQuery := db.from(goqu.T(tableBooks).As("l")).
		LeftJoin(goqu.T(tableAuthors).As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("l.autor_id")))).
		Where(where...)
	total, err := db.count(ctx, db.DB, countQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	books := make([]*models.Book, 0)
	query := db.bookQuery().
		Where(where...).
		Order(bookOrder(f.Sort)...).
		Limit(uint(f.PageSize)).
		Offset(uint(f.Offset()))
	if err := db.selectAll(ctx, db.DB, &books, query); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return &models.BookPage{Books: books, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func nullableString(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}

func nullableInt64(v *int64) any {
	if v == nil || *v == 0 {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// CreateBook inserts a book; all copies start on the shelf.
func (db *DB) CreateBook(ctx context.Context, book *models.Book) error {
	now := storeNow()
	book.AvailableCopies = book.TotalCopies
	book.CreatedAt = now

	id, err := db.insertID(ctx, db.DB, db.insert(tableBooks).Rows(goqu.Record{
		"titulo":         book.Title,
		"isbn":           nullableString(book.ISBN),
		"autor_id":       nullableInt64(book.AuthorID),
		"categoria_id":   nullableInt64(book.CategoryID),
		"ano_publicacao": nullableInt(book.Year),
		"preco":          book.PriceCents,
		colTotal:         book.TotalCopies,
		colAvailable:     book.AvailableCopies,
		"descricao":      book.Description,
		colCreatedAt:     now,
	}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("book isbn already registered: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}
	book.ID = id
	return nil
}

// UpdateBook changes descriptive fields. Stock goes through SetBookStock.
func (db *DB) UpdateBook(ctx context.Context, book *models.Book) error {
	n, err := db.exec(ctx, db.DB, db.update(tableBooks).Set(goqu.Record{
		"titulo":         book.Title,
		"isbn":           nullableString(book.ISBN),
		"autor_id":       nullableInt64(book.AuthorID),
		"categoria_id":   nullableInt64(book.CategoryID),
		"ano_publicacao": nullableInt(book.Year),
		"preco":          book.PriceCents,
		"descricao":      book.Description,
	}).Where(goqu.C(colID).Eq(book.ID)))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("book isbn already registered: %w", ErrConflict)
		}
		return fmt.Errorf("failed to update book: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", book.ID, ErrNotFound)
	}
	return nil
}

// SetBookStock changes the number of owned copies. Copies held by
// reservations and loans stay accounted for, so shrinking below them fails
// with ErrConflict.
func (db *DB) SetBookStock(ctx context.Context, id, total int64) (*models.Book, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative stock: %w", ErrConflict)
	}

	var book *models.Book
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := db.exec(ctx, tx, db.update(tableBooks).Set(goqu.Record{
			colAvailable: goqu.L("exemplares_disponiveis + (? - total_exemplares)", total),
			colTotal:     total,
		}).Where(
			goqu.C(colID).Eq(id),
			goqu.L("exemplares_disponiveis + (? - total_exemplares) >= 0", total),
		))
		if err != nil {
			return fmt.Errorf("failed to set stock: %w", err)
		}
		if n == 0 {
			if err := db.bookExists(ctx, tx, id); err != nil {
				return err
			}
			return fmt.Errorf("copies in use exceed new stock: %w", ErrConflict)
		}
		book, err = db.getBook(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// takeCopy removes one copy from the shelf. It reports false when none is
// left; the conditional update lets the database arbitrate concurrent takers.
func (db *DB) takeCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) (bool, error) {
	n, err := db.exec(ctx, tx, db.update(tableBooks).
		Set(goqu.Record{colAvailable: goqu.L("exemplares_disponiveis - 1")}).
		Where(goqu.C(colID).Eq(bookID), goqu.C(colAvailable).Gt(0)))
	if err != nil {
		return false, fmt.Errorf("failed to take copy of book %d: %w", bookID, err)
	}
	return n == 1, nil
}

// releaseCopy puts one copy back on the shelf.
func (db *DB) releaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	n, err := db.exec(ctx, tx, db.update(tableBooks).
		Set(goqu.Record{colAvailable: goqu.L("exemplares_disponiveis + 1")}).
		Where(goqu.C(colID).Eq(bookID), goqu.L("exemplares_disponiveis < total_exemplares")))
	if err != nil {
		return fmt.Errorf("failed to release copy of book %d: %w", bookID, err)
	}
	if n == 0 {
		db.logger.Warn().Int64("book_id", bookID).Msg("Released copy ignored: shelf already full")
	}
	return nil
}

func (db *DB) CreateAuthor(ctx context.Context, author *models.Author) error {
	id, err := db.insertID(ctx, db.DB, db.insert(tableAuthors).Rows(goqu.Record{
		"nome":      author.Name,
		"biografia": author.Biography,
	}))
	if err != nil {
		return fmt.Errorf("failed to create author: %w", err)
	}
	author.ID = id
	return nil
}

func (db *DB) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	authors := make([]*models.Author, 0)
	if err := db.selectAll(ctx, db.DB, &authors, db.from(tableAuthors).Order(goqu.C("nome").Asc())); err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	return authors, nil
}

func (db *DB) GetAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	var author models.Author
	if err := db.get(ctx, db.DB, &author, db.from(tableAuthors).Where(goqu.C("nome").Eq(name)).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get author %q: %w", name, notFound(err))
	}
	return &author, nil
}

func (db *DB) CreateCategory(ctx context.Context, category *models.Category) error {
	id, err := db.insertID(ctx, db.DB, db.insert(tableCategories).Rows(goqu.Record{"nome": category.Name}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q exists: %w", category.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	category.ID = id
	return nil
}

func (db *DB) ListCategories(ctx context.Context) ([]*models.Category, error) {
	categories := make([]*models.Category, 0)
	if err := db.selectAll(ctx, db.DB, &categories, db.from(tableCategories).Order(goqu.C("nome").Asc())); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (db *DB) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	if err := db.get(ctx, db.DB, &category, db.from(tableCategories).Where(goqu.C("nome").Eq(name))); err != nil {
		return nil, fmt.Errorf("failed to get category %q: %w", name, notFound(err))
	}
	return &category, nil
}

// GetBookByISBN is used by the catalog seeder to stay idempotent.
func (db *DB) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := db.get(ctx, db.DB, &book, db.bookQuery().Where(goqu.I("l.isbn").Eq(isbn))); err != nil {
		return nil, fmt.Errorf("failed to get book by isbn: %w", notFound(err))
	}
	return &book, nil
}
