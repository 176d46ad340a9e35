package models

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"nome" json:"nome"`
	Email        string    `db:"email" json:"email"`
	PasswordHash *string   `db:"senha_hash" json:"-"`
	GoogleID     *string   `db:"google_id" json:"-"`
	Role         string    `db:"papel" json:"papel"`
	CreatedAt    time.Time `db:"criado_em" json:"criado_em"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is one login; its ID is the token jti.
type Session struct {
	ID        string     `db:"id" json:"id"`
	UserID    int64      `db:"usuario_id" json:"usuario_id"`
	CreatedAt time.Time  `db:"criado_em" json:"criado_em"`
	LastSeen  time.Time  `db:"ultimo_acesso" json:"ultimo_acesso"`
	EndedAt   *time.Time `db:"encerrada_em" json:"encerrada_em,omitempty"`
}

func (s *Session) IsOpen() bool {
	return s.EndedAt == nil
}
