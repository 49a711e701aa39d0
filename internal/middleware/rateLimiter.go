package middleware

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"chatroom/internal/models"
)

const (
	burstLimit = 5
	refillRate = 500 * time.Millisecond

	sweepEvery = time.Minute
)

// RateLimiter is a lock-free token bucket. Tokens refill one per rate up to
// burst.
type RateLimiter struct {
	token    int32
	rate     time.Duration
	burst    int32
	lastTick int64
	now      func() time.Time
}

func NewRatelimiter(burst int32, rate time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = burstLimit
	}
	if rate <= 0 {
		rate = refillRate
	}
	return &RateLimiter{
		token:    burst,
		rate:     rate,
		burst:    burst,
		lastTick: time.Now().UnixNano(),
		now:      time.Now,
	}
}

func (l *RateLimiter) refill() {
	now := l.now().UnixNano()
	last := atomic.LoadInt64(&l.lastTick)

	generated := (now - last) / int64(l.rate)
	if generated <= 0 {
		return
	}

	// Advance by whole tokens only so partial progress is kept.
	if !atomic.CompareAndSwapInt64(&l.lastTick, last, last+generated*int64(l.rate)) {
		return
	}
	for {
		current := atomic.LoadInt32(&l.token)
		next := int64(current) + generated
		if next > int64(l.burst) {
			next = int64(l.burst)
		}
		if atomic.CompareAndSwapInt32(&l.token, current, int32(next)) {
			return
		}
	}
}

func (l *RateLimiter) Allow() bool {
	l.refill()

	for {
		current := atomic.LoadInt32(&l.token)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.token, current, current-1) {
			return true
		}
	}
}

// full reports whether the bucket has refilled completely, at which point it
// is indistinguishable from a new one.
func (l *RateLimiter) full() bool {
	l.refill()
	return atomic.LoadInt32(&l.token) >= l.burst
}

// Limiters hands out one RateLimiter per participant.
type Limiters struct {
	mu        sync.Mutex
	buckets   map[string]*RateLimiter
	burst     int32
	rate      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLimiters(burst int, rate time.Duration) *Limiters {
	return &Limiters{
		buckets:   make(map[string]*RateLimiter),
		burst:     int32(burst),
		rate:      rate,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (ls *Limiters) get(name string) *RateLimiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.now().Sub(ls.lastSweep) > sweepEvery {
		for key, l := range ls.buckets {
			if l.full() {
				delete(ls.buckets, key)
			}
		}
		ls.lastSweep = ls.now()
	}

	key := models.NameKey(name)
	l, ok := ls.buckets[key]
	if !ok {
		l = NewRatelimiter(ls.burst, ls.rate)
		l.now = ls.now
		l.lastTick = ls.now().UnixNano()
		ls.buckets[key] = l
	}
	return l
}

func (ls *Limiters) Allow(name string) bool {
	return ls.get(name).Allow()
}

func (ls *Limiters) size() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.buckets)
}

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// Callers are identified by the User header set by RequireUser, falling back
// to the client address.
func RateLimit(ls *Limiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := UserFromContext(r.Context())
			if !ok {
				key = getIP(r)
			}

			if !ls.Allow(key) {
				log.Printf("[RATE LIMIT] Rejected request from %s on %s", key, r.URL.Path)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
