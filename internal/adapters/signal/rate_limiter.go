package signal

import (
	"sync"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"golang.org/x/time/rate"
)

// MessageRateLimiter is a token bucket per user.
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &MessageRateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *MessageRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops the bucket of a user whose connection ended.
func (rl *MessageRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	delete(rl.limiters, uid)
	rl.mu.Unlock()
}
