package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// refillWindow is how long an idle bucket takes to refill completely. An
// entry idle for longer is indistinguishable from a new one and is evicted.
const refillWindow = time.Minute

// chatLimiter keeps one token bucket per chat. A nil *chatLimiter allows
// everything.
type chatLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[int64]*chatBucket
	lastSweep time.Time
	now       func() time.Time
}

type chatBucket struct {
	*rate.Limiter
	lastSeen time.Time
}

func newChatLimiter(perMinute int) *chatLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &chatLimiter{
		limit:    rate.Every(refillWindow / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[int64]*chatBucket),
		now:      time.Now,
	}
}

// Allow reports whether chatID may run the agent now.
func (l *chatLimiter) Allow(chatID int64) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.limiters[chatID]
	if !ok {
		b = &chatBucket{Limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[chatID] = b
	}
	b.lastSeen = now
	return b.AllowN(now, 1)
}

// sweep drops idle buckets, at most once per refill window.
func (l *chatLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < refillWindow {
		return
	}
	l.lastSweep = now
	for id, b := range l.limiters {
		if now.Sub(b.lastSeen) >= refillWindow {
			delete(l.limiters, id)
		}
	}
}

// Len returns the number of tracked chats.
func (l *chatLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
