// Package admission implements a tiered sliding-window-log admission
// controller. Each request is checked against three windows (minute, hour,
// day) simultaneously; the tightest one that would be exceeded wins. The
// Redis implementation is grounded on the original service's
// rate_limiter.py sliding-window-log (zremrangebyscore / zadd / zcard),
// wired through the existing Eval-script idiom (middleware/ratelimit.go)
// instead of a token-bucket, since exact window semantics are required
// rather than a smoothed rate. An in-process fallback mirrors the
// original's InMemoryRateLimiter for when Redis is unreachable, failing
// open through a conservative local counter.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"geosentry/api/internal/model"
)

// Window identifies one of the three sliding windows checked per request.
type Window struct {
	Name   string
	Period time.Duration
	Limit  func(model.TierLimits) int
}

// Windows is the fixed set of windows evaluated on every admission check.
var Windows = []Window{
	{Name: "minute", Period: time.Minute, Limit: func(l model.TierLimits) int { return l.PerMinute }},
	{Name: "hour", Period: time.Hour, Limit: func(l model.TierLimits) int { return l.PerHour }},
	{Name: "day", Period: 24 * time.Hour, Limit: func(l model.TierLimits) int { return l.PerDay }},
}

// Decision is the result of an admission check. Limit/Remaining/Reset
// describe the tightest window evaluated (the one with the fewest requests
// left), whether or not the request was allowed, so callers can surface
// rate-limit headers on every response, not just rejections.
type Decision struct {
	Allowed    bool
	Window     string // tightest window evaluated, or the one that rejected the request
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// slidingWindowScript evicts entries older than the window, counts what's
// left, and only records the new request if it still fits — an atomic
// check-and-increment so concurrent requests can't both slip through.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, ARGV[5])
	return {1, count + 1}
end

return {0, count}
`

// Limiter checks and records requests against the sliding windows.
type Limiter struct {
	rdb      *redis.Client
	fallback *inMemoryLimiter
}

func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, fallback: newInMemoryLimiter()}
}

// Check evaluates identifier (typically "user:<id>" or "ip:<addr>") against
// tier for one request, recording it when admitted, and returns the first
// window it would violate, tightest first.
func (l *Limiter) Check(ctx context.Context, identifier string, tier model.TierLimits) Decision {
	now := time.Now()
	tightest := Decision{Allowed: true}
	haveTightest := false
	for _, w := range Windows {
		limit := w.Limit(tier)
		if limit <= 0 {
			continue
		}
		allowed, count, err := l.checkWindow(ctx, identifier, w, now, limit)
		if err != nil {
			// Redis unreachable: fail open through the local fallback rather
			// than blocking all traffic.
			allowed, count = l.fallback.check(identifier, w, now, limit)
		}
		if !allowed {
			return Decision{
				Allowed:    false,
				Window:     w.Name,
				Limit:      limit,
				Remaining:  0,
				Reset:      now.Add(w.Period),
				RetryAfter: w.Period,
			}
		}
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		if !haveTightest || remaining < tightest.Remaining {
			haveTightest = true
			tightest = Decision{
				Allowed:   true,
				Window:    w.Name,
				Limit:     limit,
				Remaining: remaining,
				Reset:     now.Add(w.Period),
			}
		}
	}
	return tightest
}

func (l *Limiter) checkWindow(ctx context.Context, identifier string, w Window, now time.Time, limit int) (bool, int, error) {
	key := fmt.Sprintf("admission:%s:%s", w.Name, identifier)
	windowStart := now.Add(-w.Period).UnixMilli()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), identifier)

	res, err := l.rdb.Eval(ctx, slidingWindowScript, []string{key},
		now.UnixMilli(), windowStart, limit, member, w.Period.Milliseconds()+1000,
	).Result()
	if err != nil {
		return false, 0, err
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("admission: unexpected script result %v", res)
	}
	allowed := values[0].(int64) == 1
	count := int(values[1].(int64))
	return allowed, count, nil
}

// inMemoryLimiter is a crude per-process sliding-window-log fallback,
// grounded on the original's InMemoryRateLimiter._cleanup_old_requests.
type inMemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
}

func newInMemoryLimiter() *inMemoryLimiter {
	return &inMemoryLimiter{requests: make(map[string][]time.Time)}
}

func (f *inMemoryLimiter) check(identifier string, w Window, now time.Time, limit int) (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := w.Name + ":" + identifier
	cutoff := now.Add(-w.Period)
	kept := f.requests[key][:0]
	for _, ts := range f.requests[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		f.requests[key] = kept
		return false, len(kept)
	}
	kept = append(kept, now)
	f.requests[key] = kept
	return true, len(kept)
}
