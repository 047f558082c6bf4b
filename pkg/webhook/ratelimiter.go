package webhook

import (
	"sync"
	"time"
)

const windowMs = 60_000

// RateLimiter implements per-IP rate limiting with a sliding one-minute
// window.
type RateLimiter struct {
	limits map[string][]int64 // ip -> request timestamps (ms)
	max    int
	mu     sync.Mutex
	stop   chan struct{}
	once   sync.Once
}

// NewRateLimiter creates a rate limiter allowing max requests per minute
// per IP.
func NewRateLimiter(max int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string][]int64),
		max:    max,
		stop:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from ip is within the limit, recording
// it if so.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	recent := prune(rl.limits[ip], now)

	if len(recent) >= rl.max {
		rl.limits[ip] = recent
		return false
	}

	rl.limits[ip] = append(recent, now)
	return true
}

// RetryAfter returns the seconds until the oldest recorded request leaves
// the window.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[ip]
	if len(requests) == 0 {
		return 0
	}

	remaining := windowMs - (time.Now().UnixMilli() - requests[0])
	if remaining <= 0 {
		return 0
	}
	return int((remaining + 999) / 1000)
}

func prune(requests []int64, now int64) []int64 {
	valid := requests[:0]
	for _, ts := range requests {
		if now-ts < windowMs {
			valid = append(valid, ts)
		}
	}
	return valid
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now().UnixMilli()
			for ip, requests := range rl.limits {
				if valid := prune(requests, now); len(valid) == 0 {
					delete(rl.limits, ip)
				} else {
					rl.limits[ip] = valid
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop stops the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}
