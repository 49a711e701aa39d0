package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(burst int32, rate time.Duration, clk *manualClock) *RateLimiter {
	l := NewRatelimiter(burst, rate)
	l.now = clk.Now
	l.lastTick = clk.Now().UnixNano()
	return l
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	l := newTestLimiter(3, 500*time.Millisecond, clk)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("expected the bucket to be empty")
	}

	clk.Advance(400 * time.Millisecond)
	if l.Allow() {
		t.Fatal("no token should be generated before the refill rate")
	}

	clk.Advance(100 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected one token after a full refill period")
	}
	if l.Allow() {
		t.Fatal("expected only one token")
	}

	clk.Advance(time.Hour)
	allowed := 0
	for l.Allow() {
		allowed++
	}
	if allowed != 3 {
		t.Errorf("refill should cap at burst, got %d", allowed)
	}
}

func TestRateLimiter_ConcurrentNeverOverspends(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	l := newTestLimiter(10, time.Hour, clk)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 10 {
		t.Errorf("expected exactly 10 allowed, got %d", allowed.Load())
	}
}

func TestLimiters_PerParticipantAndSweep(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	ls := NewLimiters(1, time.Second)
	ls.now = clk.Now
	ls.lastSweep = clk.Now()

	if !ls.Allow("ana") || ls.Allow("ANA") {
		t.Fatal("ana and ANA should share one bucket")
	}
	if !ls.Allow("bob") {
		t.Fatal("bob has a separate bucket")
	}

	clk.Advance(2 * time.Minute)
	if !ls.Allow("carla") {
		t.Fatal("carla should be allowed")
	}
	if got := ls.size(); got != 1 {
		t.Errorf("expected refilled buckets swept, %d left", got)
	}
}

func TestRequireUser(t *testing.T) {
	var seen string
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))

	tests := []struct {
		header string
		status int
		user   string
	}{
		{"ana", http.StatusOK, "ana"},
		{"  <b>ana</b> ", http.StatusOK, "ana"},
		{"Tom & Jerry", http.StatusOK, "Tom & Jerry"},
		{"", http.StatusUnprocessableEntity, ""},
		{"<script>alert(1)</script>", http.StatusUnprocessableEntity, ""},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/messages", nil)
		if tt.header != "" {
			req.Header.Set(UserHeader, tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("header %q: expected status %d, got %d", tt.header, tt.status, rec.Code)
		}
		if seen != tt.user {
			t.Errorf("header %q: expected user %q, got %q", tt.header, tt.user, seen)
		}
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	ls := NewLimiters(2, time.Hour)
	h := RequireUser(RateLimit(ls)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.Header.Set(UserHeader, "ana")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.Header.Set(UserHeader, "bob")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("bob should not be limited by ana, got %d", rec.Code)
	}
}

func TestSanitize_EncodedMarkupStaysStripped(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<b>hi</b>", "hi"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"&lt;b&gt;hi&lt;/b&gt; there", "hi there"},
		{"&amp;lt;i&amp;gt;nested&amp;lt;/i&amp;gt;", "nested"},
		{"  Tom &amp; Jerry ", "Tom & Jerry"},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if strings.Contains(got, "<") {
			t.Errorf("Sanitize(%q) = %q still carries markup", tt.in, got)
		}
	}
}
