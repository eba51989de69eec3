package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultSummaryTTL bounds how long a summary may outlive a missed refresh
const DefaultSummaryTTL = 24 * time.Hour

// RedisCache implements domain.AggregateCache with Redis
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ domain.AggregateCache = (*RedisCache)(nil)

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisCache creates a new RedisCache
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &RedisCache{
		client: client,
		prefix: "cicilan:loan-summary:",
		ttl:    ttl,
	}
}

func (r *RedisCache) key(loanID int32) string {
	return fmt.Sprintf("%s%d", r.prefix, loanID)
}

// Get returns the cached summary, or nil on a miss
func (r *RedisCache) Get(ctx context.Context, loanID int32) (*domain.LoanSummary, error) {
	raw, err := r.client.Get(ctx, r.key(loanID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var summary domain.LoanSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		// unreadable entries count as a miss
		return nil, nil
	}
	return &summary, nil
}

// Set stores a summary unless a newer version is already cached
func (r *RedisCache) Set(ctx context.Context, summary *domain.LoanSummary) error {
	existing, err := r.Get(ctx, summary.LoanID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Version > summary.Version {
		return nil
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(summary.LoanID), raw, r.ttl).Err()
}

// Invalidate drops the cached summary
func (r *RedisCache) Invalidate(ctx context.Context, loanID int32) error {
	return r.client.Del(ctx, r.key(loanID)).Err()
}
