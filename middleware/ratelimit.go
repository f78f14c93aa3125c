package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"

	"now-playing-go/logcolors"
	"now-playing-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    *sync.RWMutex
	rate  rate.Limit
	burst int
}

// NewIPRateLimiter creates a new per-IP rate limiter
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		mu:    &sync.RWMutex{},
		rate:  r,
		burst: burst,
	}
}

// GetLimit returns the burst limit
func (i *IPRateLimiter) GetLimit() int {
	return i.burst
}

func (i *IPRateLimiter) AddIP(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter := rate.NewLimiter(i.rate, i.burst)
	i.ips[ip] = limiter

	return limiter
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.ips[ip]
	i.mu.RUnlock()

	if !exists {
		return i.AddIP(ip)
	}

	return limiter
}

// Remaining returns the whole tokens left for a limiter
func Remaining(limiter *rate.Limiter) int {
	return int(math.Max(0, math.Floor(limiter.Tokens())))
}

// clientIP strips the port from RemoteAddr so reconnects share a bucket
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects clients that exceed their bucket with 429
func RateLimitMiddleware(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			l := limiter.GetLimiter(ip)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetLimit()))

			if l.Allow() {
				stats.Get().RecordRateLimit(true)
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", Remaining(l)))
				next.ServeHTTP(w, r)
				return
			}

			stats.Get().RecordRateLimit(false)
			log.Warnf("%s IP %s exceeded rate limit", logcolors.LogRateLimit, ip)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
