package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("GET /api/livros", 200, 15*time.Millisecond)
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/livros", "200")))

	before := testutil.ToFloat64(reservationTransitions.WithLabelValues("expirado"))
	IncReservationTransition("expirado")
	IncReservationTransition("expirado")
	assert.Equal(t, before+2, testutil.ToFloat64(reservationTransitions.WithLabelValues("expirado")))

	IncSweep("ok")
	assert.Equal(t, float64(1), testutil.ToFloat64(sweepRuns.WithLabelValues("ok")))

	IncLoanEvent("returned")
	assert.Equal(t, float64(1), testutil.ToFloat64(loanEvents.WithLabelValues("returned")))
}
