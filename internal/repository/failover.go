package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bibliotech/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverPresenceRepository routes calls to the primary store and switches
// to the fallback after the first failure. The primary is retried once per
// recoveryInterval.
type FailoverPresenceRepository struct {
	primary   domain.PresenceRepository
	fallback  domain.PresenceRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverPresenceRepository(primary, fallback domain.PresenceRepository, logger *zerolog.Logger) *FailoverPresenceRepository {
	return &FailoverPresenceRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should try the primary store.
func (r *FailoverPresenceRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverPresenceRepository) report(err error) {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary presence repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary presence repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverPresenceRepository) MarkOnline(ctx context.Context, userID int64, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.MarkOnline(ctx, userID, ttl)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.MarkOnline(ctx, userID, ttl)
}

func (r *FailoverPresenceRepository) MarkOffline(ctx context.Context, userID int64) error {
	if r.usePrimary() {
		err := r.primary.MarkOffline(ctx, userID)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.MarkOffline(ctx, userID)
}

func (r *FailoverPresenceRepository) CountOnline(ctx context.Context) (int64, error) {
	if r.usePrimary() {
		n, err := r.primary.CountOnline(ctx)
		r.report(err)
		if err == nil {
			return n, nil
		}
	}
	return r.fallback.CountOnline(ctx)
}

func (r *FailoverPresenceRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
