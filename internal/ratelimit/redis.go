package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/redis"
)

// RedisLimiter implements Limiter on Redis counters, for deployments where
// several bot instances must share one admission budget. INCR provides the
// single-updater-per-bucket guarantee; the key's TTL anchors the window at
// the bucket's first use.
type RedisLimiter struct {
	client  *redis.Client
	actions map[string]config.ActionLimit
	logger  *slog.Logger
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, actions map[string]config.ActionLimit) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		actions: actions,
		logger:  slog.Default().With("component", "redis-ratelimit"),
	}
}

// Allow increments the subject's bucket and admits while the count is within
// the limit. An over-limit increment is undone so a denied call leaves the
// bucket unchanged. Redis failures fail open: admission control must not
// take delivery down with it.
func (l *RedisLimiter) Allow(ctx context.Context, subjectID int64, action string) bool {
	al, ok := l.actions[action]
	if !ok {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s:%d", action, subjectID)
	count, err := l.client.IncrWindow(ctx, key, al.Window)
	if err != nil {
		l.logger.Warn("rate limit check failed, admitting", "key", key, "error", err)
		return true
	}
	if count > int64(al.Limit) {
		if err := l.client.DecrIfExists(ctx, key); err != nil {
			l.logger.Warn("rate limit undo failed", "key", key, "error", err)
		}
		return false
	}
	return true
}
