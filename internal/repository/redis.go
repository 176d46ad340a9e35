package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bibliotech/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKey     = "presence:online"
	rateLimitPrefix = "rate_limit:"
)

// RedisPresenceRepository keeps online readers in a sorted set scored by the
// unix time their presence expires.
type RedisPresenceRepository struct {
	client *redis.Client
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) MarkOnline(ctx context.Context, userID int64, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	expires := time.Now().Add(ttl).Unix()
	member := strconv.FormatInt(userID, 10)
	if err := r.client.ZAdd(ctx, presenceKey, redis.Z{Score: float64(expires), Member: member}).Err(); err != nil {
		return fmt.Errorf("failed to mark user online: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) MarkOffline(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.ZRem(ctx, presenceKey, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to mark user offline: %w", err)
	}
	return nil
}

// CountOnline drops expired members before counting.
func (r *RedisPresenceRepository) CountOnline(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+now).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune presence: %w", err)
	}
	n, err := r.client.ZCard(ctx, presenceKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return n, nil
}

// IsOnline reports whether userID has an unexpired presence entry.
func (r *RedisPresenceRepository) IsOnline(ctx context.Context, userID int64) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	score, err := r.client.ZScore(ctx, presenceKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return int64(score) >= time.Now().Unix(), nil
}

// CheckRateLimit counts attempts for key in a fixed window and reports
// whether this attempt is still within limit.
func (r *RedisPresenceRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := rateLimitPrefix + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
