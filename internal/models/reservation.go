package models

import "time"

type Reservation struct {
	ID        int64      `db:"id" json:"id"`
	BookID    int64      `db:"livro_id" json:"livro_id"`
	UserID    int64      `db:"usuario_id" json:"usuario_id"`
	Status    string     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"data_reserva" json:"data_reserva"`
	ExpiresAt *time.Time `db:"data_expiracao" json:"data_expiracao"`
	UpdatedAt time.Time  `db:"atualizado_em" json:"atualizado_em"`
	Version   int64      `db:"versao" json:"versao"`

	// Filled by joins and queue lookups, not stored.
	BookTitle     string `db:"titulo" json:"titulo,omitempty"`
	UserName      string `db:"usuario_nome" json:"usuario_nome,omitempty"`
	QueuePosition int    `db:"-" json:"posicao_fila,omitempty"`
}

// IsActive reports whether the reservation still holds a place in the queue
// or a copy on the shelf.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationWaiting || r.Status == ReservationReady
}

// IsTerminal reports whether no further transition is allowed.
func (r *Reservation) IsTerminal() bool {
	return IsTerminalReservationStatus(r.Status)
}

// ReservationChange is the outcome of a transition that may hand the released
// copy over to the next reservation in the queue.
type ReservationChange struct {
	Reservation *Reservation `json:"reserva"`
	Promoted    *Reservation `json:"promovida,omitempty"`
}

// SweepResult collects what one expiry/promotion pass did.
type SweepResult struct {
	Expired  []*Reservation `json:"expiradas"`
	Promoted []*Reservation `json:"promovidas"`
}

// ReservationGroups is the shape of the "my reservations" listing.
type ReservationGroups struct {
	All     []*Reservation `json:"reservas"`
	Ready   []*Reservation `json:"prontas"`
	Waiting []*Reservation `json:"aguardando"`
	History []*Reservation `json:"historico"`
}

// GroupReservations splits a listing by status, keeping the input order.
func GroupReservations(list []*Reservation) ReservationGroups {
	groups := ReservationGroups{
		All:     make([]*Reservation, 0, len(list)),
		Ready:   make([]*Reservation, 0),
		Waiting: make([]*Reservation, 0),
		History: make([]*Reservation, 0),
	}
	for _, r := range list {
		groups.All = append(groups.All, r)
		switch r.Status {
		case ReservationReady:
			groups.Ready = append(groups.Ready, r)
		case ReservationWaiting:
			groups.Waiting = append(groups.Waiting, r)
		default:
			groups.History = append(groups.History, r)
		}
	}
	return groups
}
