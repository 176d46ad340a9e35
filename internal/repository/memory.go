package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryPresenceRepository is the single-process fallback used while Redis
// is unreachable.
type MemoryPresenceRepository struct {
	mu         sync.Mutex
	online     map[int64]time.Time
	rateLimits sync.Map
}

func NewMemoryPresenceRepository() *MemoryPresenceRepository {
	return &MemoryPresenceRepository{online: make(map[int64]time.Time)}
}

func (r *MemoryPresenceRepository) MarkOnline(_ context.Context, userID int64, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = time.Now().Add(ttl)
	return nil
}

func (r *MemoryPresenceRepository) MarkOffline(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, userID)
	return nil
}

func (r *MemoryPresenceRepository) CountOnline(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, expires := range r.online {
		if expires.Before(now) {
			delete(r.online, id)
		}
	}
	return int64(len(r.online)), nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryPresenceRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, _ := r.rateLimits.LoadOrStore(key, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
