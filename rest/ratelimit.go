package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/codetrainer/judged/judge"
)

const rateLimitMessage = "Too many requests. Please wait a moment and try again."

// SlidingWindow limits execute requests per client address over a rolling
// window, with an optional global requests-per-second throttle in front.
// Rejections carry an ExecutionResult-shaped body so clients render them
// like any other execution failure.
type SlidingWindow struct {
	limit  int
	window time.Duration
	global *rate.Limiter

	mu        sync.Mutex
	clients   map[string][]time.Time
	lastPrune time.Time
}

// NewSlidingWindow creates a limiter allowing limit requests per window per
// client. limit <= 0 disables per-client limiting; globalRPS <= 0 disables
// the global throttle.
func NewSlidingWindow(limit int, window time.Duration, globalRPS float64) *SlidingWindow {
	var g *rate.Limiter
	if globalRPS > 0 {
		burst := int(globalRPS)
		if burst < 1 {
			burst = 1
		}
		g = rate.NewLimiter(rate.Limit(globalRPS), burst)
	}
	return &SlidingWindow{
		limit:   limit,
		window:  window,
		global:  g,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether a request from addr at time now is within limits.
func (l *SlidingWindow) Allow(addr string, now time.Time) bool {
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	cutoff := now.Add(-l.window)
	stamps := l.clients[addr]
	keep := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	if len(keep) >= l.limit {
		l.clients[addr] = keep
		return false
	}
	l.clients[addr] = append(keep, now)
	return true
}

// pruneLocked drops clients whose whole window has expired so the map does
// not grow without bound.
func (l *SlidingWindow) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	cutoff := now.Add(-l.window)
	for addr, stamps := range l.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.clients, addr)
		}
	}
}

// Middleware rejects over-limit requests with 429 and a canned error result.
func (l *SlidingWindow) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, judge.ErrorResult(rateLimitMessage))
			return
		}
		c.Next()
	}
}
