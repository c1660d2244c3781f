// api/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one admission check, with enough metadata for
// client back-off guidance.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window token bucket backed by a shared Redis counter,
// so every service instance draws from the same budget per client key.
//
// Fixed window, not sliding: a client can burst up to 2x capacity across a
// window boundary. That trade-off matches the upstream contract; the limiter
// is capacity protection, not a security boundary.
type Limiter struct {
	rdb      *redis.Client
	capacity int
	period   time.Duration
	now      func() time.Time
}

func New(rdb *redis.Client, capacity int, period time.Duration) *Limiter {
	return &Limiter{
		rdb:      rdb,
		capacity: capacity,
		period:   period,
		now:      time.Now,
	}
}

// Admit consumes one token for clientKey. The Redis INCR is the atomic
// check-and-increment: two concurrent callers racing for the last token can
// never both be admitted. The bucket key carries the window stamp, so a
// missing or expired bucket is simply a fresh one at full capacity.
func (l *Limiter) Admit(ctx context.Context, clientKey string) (Decision, error) {
	windowStart := l.now().Truncate(l.period)

	key := fmt.Sprintf("ratelimit:%s:%d", clientKey, windowStart.Unix())
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("increment bucket %s: %w", clientKey, err)
	}
	if count == 1 {
		// Small grace past the window end so in-flight reads see the bucket.
		l.rdb.Expire(ctx, key, l.period+time.Second)
	}

	return l.decision(count, windowStart), nil
}

// decision maps a post-increment counter value onto the admission contract.
func (l *Limiter) decision(count int64, windowStart time.Time) Decision {
	remaining := l.capacity - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.capacity),
		Limit:     l.capacity,
		Remaining: remaining,
		ResetAt:   windowStart.Add(l.period),
	}
}
