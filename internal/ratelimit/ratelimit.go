// Package ratelimit provides per-subject, per-action admission control over
// fixed time windows. A bucket opens on a subject's first use of an action
// and is lazily reset once its window has elapsed; there is no sweep pass on
// the admission path.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/config"
)

// Limiter admits or rejects one use of an action by a subject. Actions with
// no configured limit are always admitted.
type Limiter interface {
	Allow(ctx context.Context, subjectID int64, action string) bool
}

type bucketKey struct {
	subjectID int64
	action    string
}

// bucket tracks usage within one fixed window anchored at its first use.
type bucket struct {
	count int
	start time.Time
}

// MemoryLimiter implements Limiter with an in-memory mutex-guarded map.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	actions map[string]config.ActionLimit
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter for the given per-action limits and
// starts a background sweep that drops stale buckets.
func NewMemoryLimiter(actions map[string]config.ActionLimit) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets: make(map[bucketKey]*bucket),
		actions: actions,
		now:     time.Now,
	}
	go l.sweep()
	return l
}

// Allow records one usage and returns true if the subject's current bucket
// for the action has remaining capacity. A denied call has no side effect.
func (l *MemoryLimiter) Allow(_ context.Context, subjectID int64, action string) bool {
	al, ok := l.actions[action]
	if !ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := bucketKey{subjectID: subjectID, action: action}
	b, exists := l.buckets[key]
	if !exists || now.Sub(b.start) >= al.Window {
		// Fresh window, lazily replacing any stale bucket.
		l.buckets[key] = &bucket{count: 1, start: now}
		return true
	}
	if b.count >= al.Limit {
		return false
	}
	b.count++
	return true
}

// sweep periodically removes buckets whose window has long elapsed to keep
// the map from growing without bound.
func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := l.now()
		for key, b := range l.buckets {
			window := l.actions[key.action].Window
			if now.Sub(b.start) >= 2*window {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
