package models

var reservationTransitions = map[string][]string{
	ReservationWaiting: {ReservationReady, ReservationCancelled},
	ReservationReady:   {ReservationCancelled, ReservationCompleted, ReservationExpired},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminalReservationStatus(status string) bool {
	switch status {
	case ReservationCancelled, ReservationCompleted, ReservationExpired:
		return true
	}
	return false
}
