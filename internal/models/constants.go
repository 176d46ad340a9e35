package models

import "time"

const (
	ReservationWaiting   = "aguardando"
	ReservationReady     = "disponivel"
	ReservationCancelled = "cancelado"
	ReservationCompleted = "concluido"
	ReservationExpired   = "expirado"
)

const (
	LoanActive   = "ativo"
	LoanReturned = "devolvido"
	LoanOverdue  = "atrasado"
)

const (
	RoleReader = "leitor"
	RoleAdmin  = "admin"
)

const (
	// DefaultPickupWindow is how long a disponivel reservation is held.
	DefaultPickupWindow = 48 * time.Hour

	// DefaultSweepInterval is the lifecycle worker tick.
	DefaultSweepInterval = time.Minute

	// DefaultLoanPeriod is the due date offset for new loans.
	DefaultLoanPeriod = 14 * 24 * time.Hour

	// DefaultTokenTTL is the lifetime of an access token.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultPresenceTTL is how long a heartbeat keeps a user online.
	DefaultPresenceTTL = 5 * time.Minute

	MinReviewScore         = 1
	MaxReviewScore         = 5
	MaxReviewCommentLength = 1000

	MinPasswordLength = 8

	DefaultPageSize = 20
	MaxPageSize     = 100

	// LoginRateLimit attempts per LoginRateWindow for one email.
	LoginRateLimit  = 10
	LoginRateWindow = 15 * time.Minute

	// TopReservedBooks is the size of the dashboard ranking.
	TopReservedBooks = 5
)
