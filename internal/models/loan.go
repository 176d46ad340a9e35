package models

import "time"

type Loan struct {
	ID            int64      `db:"id" json:"id"`
	BookID        int64      `db:"livro_id" json:"livro_id"`
	UserID        int64      `db:"usuario_id" json:"usuario_id"`
	ReservationID *int64     `db:"reserva_id" json:"reserva_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	LoanedAt      time.Time  `db:"data_emprestimo" json:"data_emprestimo"`
	DueAt         time.Time  `db:"data_prevista" json:"data_prevista"`
	ReturnedAt    *time.Time `db:"data_devolucao" json:"data_devolucao,omitempty"`

	BookTitle string `db:"titulo" json:"titulo,omitempty"`
	UserName  string `db:"usuario_nome" json:"usuario_nome,omitempty"`
}

// IsOut reports whether the copy is still with the reader.
func (l *Loan) IsOut() bool {
	return l.Status == LoanActive || l.Status == LoanOverdue
}

type Review struct {
	ID        int64     `db:"id" json:"id"`
	BookID    int64     `db:"livro_id" json:"livro_id"`
	UserID    int64     `db:"usuario_id" json:"usuario_id"`
	Score     int       `db:"nota" json:"nota"`
	Comment   string    `db:"comentario" json:"comentario"`
	CreatedAt time.Time `db:"criado_em" json:"criado_em"`

	UserName string `db:"usuario_nome" json:"usuario_nome,omitempty"`
}

type ReviewList struct {
	Reviews      []*Review `json:"avaliacoes"`
	AverageScore *float64  `json:"media"`
	Count        int       `json:"total"`
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	Books                int64            `json:"livros"`
	Users                int64            `json:"usuarios"`
	ActiveLoans          int64            `json:"emprestimos_ativos"`
	OverdueLoans         int64            `json:"emprestimos_atrasados"`
	ReservationsByStatus map[string]int64 `json:"reservas_por_status"`
	TopReserved          []*BookRanking   `json:"mais_reservados"`
	OnlineUsers          int64            `json:"usuarios_online"`
}

type BookRanking struct {
	BookID       int64  `db:"livro_id" json:"livro_id"`
	Title        string `db:"titulo" json:"titulo"`
	Reservations int64  `db:"total" json:"total"`
}
