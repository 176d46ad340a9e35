package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bibliotech"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_sweeps_total",
			Help:      "Lifecycle worker passes by result.",
		},
		[]string{"result"},
	)

	loanEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_events_total",
			Help:      "Loan events by type.",
		},
		[]string{"event"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, reservationTransitions, sweepRuns, loanEvents)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(route string, code int, dur time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

func IncReservationTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

func IncSweep(result string) {
	sweepRuns.WithLabelValues(result).Inc()
}

func IncLoanEvent(event string) {
	loanEvents.WithLabelValues(event).Inc()
}
