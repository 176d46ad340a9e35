package worker

import (
	"math"
	"time"
)

// RetryPolicy is the exponential backoff applied after consecutive failed
// runs. MaxRetries caps the exponent so the delay stops growing.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy backs off from 5s up to 5m.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    8,
	InitialDelay:  5 * time.Second,
	MaxDelay:      5 * time.Minute,
	BackoffFactor: 2,
}

// NextDelay returns the delay after the given consecutive failure (1-based).
func (r RetryPolicy) NextDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if r.MaxRetries > 0 && failures > r.MaxRetries {
		failures = r.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(failures-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
