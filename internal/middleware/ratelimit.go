package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pixelmart/storefront/internal/errors"
	"github.com/pixelmart/storefront/internal/httputil"
	"github.com/pixelmart/storefront/internal/metrics"
	"github.com/pixelmart/storefront/pkg/logger"
)

// window tracks one client's request count inside the current fixed window.
type window struct {
	count int
	start time.Time
}

// RateLimiter enforces a fixed-window request budget per client IP. The count
// resets when the window elapses; exceeding the budget rejects the request but
// does not block the client beyond the window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	name   string
	limit  int
	period time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per period for each
// client IP. name labels the budget in logs and metrics.
func NewRateLimiter(name string, limit int, period time.Duration, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		windows: make(map[string]*window),
		name:    name,
		limit:   limit,
		period:  period,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the limiter clock for tests.
func (rl *RateLimiter) SetClock(now func() time.Time) { rl.now = now }

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)
		allowed, remaining, reset := rl.allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.log.WithFields(map[string]interface{}{
				"budget": rl.name,
				"ip":     key,
				"path":   r.URL.Path,
			}).Warn("rate limit exceeded")
			metrics.RecordRateLimited(rl.name)
			httputil.WriteError(w, errors.RateLimited("too many requests, please try again later"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) (allowed bool, remaining int, reset time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	win, ok := rl.windows[key]
	if !ok || !now.Before(win.start.Add(rl.period)) {
		win = &window{start: now}
		rl.windows[key] = win
	}
	reset = win.start.Add(rl.period)

	if win.count >= rl.limit {
		return false, 0, reset
	}
	win.count++
	return true, rl.limit - win.count, reset
}

// StartCleanup sweeps elapsed windows periodically until the returned stop
// function is called.
func (rl *RateLimiter) StartCleanup(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, win := range rl.windows {
		if !now.Before(win.start.Add(rl.period)) {
			delete(rl.windows, key)
		}
	}
}

// ClientIP resolves the client address: first X-Forwarded-For hop when
// present, else the RemoteAddr host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
