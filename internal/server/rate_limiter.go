package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter applies a fixed-window request budget per client identity.
type rateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	trustProxy bool
	windows    map[string]clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration, trustProxy bool) *rateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &rateLimiter{
		limit:      limit,
		window:     window,
		trustProxy: trustProxy,
		windows:    map[string]clientWindow{},
	}
}

// identity picks the key a request is budgeted under: the first forwarded
// hop when proxy headers are trusted, otherwise the socket peer address.
func (limiter *rateLimiter) identity(request *http.Request) string {
	if limiter.trustProxy {
		for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
			firstHop, _, _ := strings.Cut(request.Header.Get(header), ",")
			if firstHop = strings.TrimSpace(firstHop); firstHop != "" {
				return firstHop
			}
		}
	}

	peer := strings.TrimSpace(request.RemoteAddr)
	if host, _, err := net.SplitHostPort(peer); err == nil && host != "" {
		return host
	}
	if peer == "" {
		return "unknown"
	}
	return peer
}

func (limiter *rateLimiter) allow(key string, now time.Time) bool {
	if key == "" {
		key = "unknown"
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	window := limiter.windows[key]
	if window.start.IsZero() || now.Sub(window.start) >= limiter.window {
		window = clientWindow{start: now}
	}

	if window.count >= limiter.limit {
		limiter.windows[key] = window
		return false
	}

	window.count++
	limiter.windows[key] = window
	limiter.cleanup(now)
	return true
}

// cleanup trims long-idle entries once the map grows past a threshold so a
// churn of one-off producers cannot grow it without bound.
func (limiter *rateLimiter) cleanup(now time.Time) {
	if len(limiter.windows) < 256 {
		return
	}

	expiry := limiter.window * 3
	for key, window := range limiter.windows {
		if now.Sub(window.start) > expiry {
			delete(limiter.windows, key)
		}
	}
}
