package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"bibliotech/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (*models.SweepResult, error) {
	f.calls.Add(1)
	return &models.SweepResult{Expired: []*models.Reservation{{ID: 1}}}, f.err
}

type fakeLoans struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLoans) MarkOverdue(context.Context) ([]*models.Loan, error) {
	f.calls.Add(1)
	return nil, f.err
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 4, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))
	assert.Equal(t, 5*time.Second, p.NextDelay(50))

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
	assert.Equal(t, 2*time.Second, RetryPolicy{}.NextDelay(2))
}

func TestRunOnce(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		sweeper, loans := &fakeSweeper{}, &fakeLoans{}
		w := NewLifecycleWorker(sweeper, loans, time.Minute, DefaultRetryPolicy, &logger)

		result, err := w.RunOnce(ctx)
		require.NoError(t, err)
		assert.Len(t, result.Expired, 1)
		assert.Equal(t, int32(1), loans.calls.Load())
	})

	t.Run("loan scan runs after failed sweep", func(t *testing.T) {
		boom := errors.New("boom")
		sweeper, loans := &fakeSweeper{err: boom}, &fakeLoans{}
		w := NewLifecycleWorker(sweeper, loans, time.Minute, DefaultRetryPolicy, &logger)

		_, err := w.RunOnce(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(1), loans.calls.Load())
	})

	t.Run("without loans", func(t *testing.T) {
		w := NewLifecycleWorker(&fakeSweeper{}, nil, 0, DefaultRetryPolicy, &logger)
		_, err := w.RunOnce(ctx)
		assert.NoError(t, err)
		assert.Equal(t, models.DefaultSweepInterval, w.interval)
	})
}

func TestTickBackoff(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	sweeper := &fakeSweeper{err: errors.New("db locked")}
	w := NewLifecycleWorker(sweeper, &fakeLoans{}, 30*time.Second, policy, &logger)

	assert.Equal(t, time.Second, w.tick(ctx))
	assert.Equal(t, 2*time.Second, w.tick(ctx))
	assert.Equal(t, 2, w.failures)

	sweeper.err = nil
	assert.Equal(t, 30*time.Second, w.tick(ctx))
	assert.Zero(t, w.failures)
}

func TestStartStopsOnCancel(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sweeper := &fakeSweeper{}
	w := NewLifecycleWorker(sweeper, &fakeLoans{}, 10*time.Millisecond, DefaultRetryPolicy, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
