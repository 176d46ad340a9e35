package models

import "time"

type Book struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"titulo" json:"titulo"`
	ISBN            *string   `db:"isbn" json:"isbn,omitempty"`
	AuthorID        *int64    `db:"autor_id" json:"autor_id,omitempty"`
	CategoryID      *int64    `db:"categoria_id" json:"categoria_id,omitempty"`
	Year            *int      `db:"ano_publicacao" json:"ano_publicacao,omitempty"`
	PriceCents      int64     `db:"preco" json:"preco"`
	TotalCopies     int64     `db:"total_exemplares" json:"total_exemplares"`
	AvailableCopies int64     `db:"exemplares_disponiveis" json:"exemplares_disponiveis"`
	Description     string    `db:"descricao" json:"descricao"`
	CreatedAt       time.Time `db:"criado_em" json:"criado_em"`

	AuthorName   *string  `db:"autor_nome" json:"autor_nome,omitempty"`
	CategoryName *string  `db:"categoria_nome" json:"categoria_nome,omitempty"`
	AverageScore *float64 `db:"media_avaliacoes" json:"media_avaliacoes,omitempty"`
	ReviewCount  int64    `db:"total_avaliacoes" json:"total_avaliacoes"`
}

func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

type Author struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"nome" json:"nome"`
	Biography string `db:"biografia" json:"biografia"`
}

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"nome" json:"nome"`
}

// Book list sort keys.
const (
	SortTitle  = "titulo"
	SortYear   = "ano"
	SortPrice  = "preco"
	SortRecent = "recentes"
)

// BookFilter narrows and orders a catalog listing.
type BookFilter struct {
	Query         string
	CategoryID    int64
	AuthorID      int64
	AvailableOnly bool
	Sort          string
	Page          int
	PageSize      int
}

// Normalize clamps paging and falls back to the title ordering.
func (f *BookFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	switch f.Sort {
	case SortTitle, SortYear, SortPrice, SortRecent:
	default:
		f.Sort = SortTitle
	}
}

func (f *BookFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type BookPage struct {
	Books    []*Book `json:"livros"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// CatalogSeed is the layout of the catalog seed file.
type CatalogSeed struct {
	Categories []string     `yaml:"categorias"`
	Authors    []SeedAuthor `yaml:"autores"`
	Books      []SeedBook   `yaml:"livros"`
}

type SeedAuthor struct {
	Name      string `yaml:"nome"`
	Biography string `yaml:"biografia"`
}

type SeedBook struct {
	Title       string `yaml:"titulo"`
	ISBN        string `yaml:"isbn"`
	Author      string `yaml:"autor"`
	Category    string `yaml:"categoria"`
	Year        int    `yaml:"ano_publicacao"`
	PriceCents  int64  `yaml:"preco"`
	Copies      int64  `yaml:"exemplares"`
	Description string `yaml:"descricao"`
}
