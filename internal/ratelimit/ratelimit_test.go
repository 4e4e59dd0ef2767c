package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/config"
)

func testActions() map[string]config.ActionLimit {
	return map[string]config.ActionLimit{
		"search": {Limit: 5, Window: time.Minute},
	}
}

func TestMemoryLimiterEnforcesLimit(t *testing.T) {
	l := &MemoryLimiter{
		buckets: make(map[bucketKey]*bucket),
		actions: testActions(),
		now:     time.Now,
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, 1, "search") {
			t.Fatalf("call %d denied, want admitted", i+1)
		}
	}
	if l.Allow(ctx, 1, "search") {
		t.Error("6th call within the window admitted, want denied")
	}
	// Another subject has its own bucket.
	if !l.Allow(ctx, 2, "search") {
		t.Error("different subject denied, want admitted")
	}
}

func TestMemoryLimiterLazyReset(t *testing.T) {
	now := time.Now()
	l := &MemoryLimiter{
		buckets: make(map[bucketKey]*bucket),
		actions: testActions(),
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, 1, "search")
	}
	if l.Allow(ctx, 1, "search") {
		t.Fatal("over-limit call admitted")
	}

	// Window elapses from the first call; the stale bucket resets lazily.
	now = now.Add(time.Minute)
	if !l.Allow(ctx, 1, "search") {
		t.Error("call after window elapsed denied, want admitted")
	}
}

func TestMemoryLimiterDenyHasNoSideEffect(t *testing.T) {
	now := time.Now()
	l := &MemoryLimiter{
		buckets: make(map[bucketKey]*bucket),
		actions: testActions(),
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, 1, "search")
	}
	for i := 0; i < 10; i++ {
		l.Allow(ctx, 1, "search") // all denied
	}
	b := l.buckets[bucketKey{subjectID: 1, action: "search"}]
	if b.count != 5 {
		t.Errorf("bucket count after denials = %d, want 5", b.count)
	}
}

func TestMemoryLimiterUnknownActionAdmits(t *testing.T) {
	l := NewMemoryLimiter(testActions())
	if !l.Allow(context.Background(), 1, "unlimited-action") {
		t.Error("unconfigured action denied, want admitted")
	}
}
