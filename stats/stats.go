package stats

import (
	"sync/atomic"
	"time"
)

// Upstream outcomes of a now-playing lookup
const (
	UpstreamPlaying        = "playing"
	UpstreamPaused         = "paused"
	UpstreamNothingPlaying = "nothing_playing"
	UpstreamFailed         = "error"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests      atomic.Int64
	NowPlayingRequests atomic.Int64
	HealthRequests     atomic.Int64
	StatsRequests      atomic.Int64
	OtherRequests      atomic.Int64

	// Token exchange
	TokenExchanges        atomic.Int64
	TokenExchangeFailures atomic.Int64
	TokenCacheHits        atomic.Int64

	// Upstream now-playing outcomes
	UpstreamPlayingCount        atomic.Int64
	UpstreamPausedCount         atomic.Int64
	UpstreamNothingPlayingCount atomic.Int64
	UpstreamErrorCount          atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

const noResponseTime = int64(^uint64(0) >> 1) // Max int64

// Global stats instance
var global = New()

// New returns an empty stats set starting now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(noResponseTime)
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/api/now-playing":
		s.NowPlayingRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordTokenExchange records one refresh-token exchange against the token endpoint
func (s *Stats) RecordTokenExchange(success bool) {
	s.TokenExchanges.Add(1)
	if !success {
		s.TokenExchangeFailures.Add(1)
	}
}

// RecordTokenCacheHit records an access token served from the cache
func (s *Stats) RecordTokenCacheHit() {
	s.TokenCacheHits.Add(1)
}

// RecordUpstream records the outcome of a now-playing lookup
func (s *Stats) RecordUpstream(outcome string) {
	switch outcome {
	case UpstreamPlaying:
		s.UpstreamPlayingCount.Add(1)
	case UpstreamPaused:
		s.UpstreamPausedCount.Add(1)
	case UpstreamNothingPlaying:
		s.UpstreamNothingPlayingCount.Add(1)
	case UpstreamFailed:
		s.UpstreamErrorCount.Add(1)
	}
}

// RecordRateLimit records whether the limiter let a request through
func (s *Stats) RecordRateLimit(allowed bool) {
	if allowed {
		s.RateLimitAllowed.Add(1)
	} else {
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == noResponseTime {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":       s.TotalRequests.Load(),
			"now_playing": s.NowPlayingRequests.Load(),
			"health":      s.HealthRequests.Load(),
			"stats":       s.StatsRequests.Load(),
			"other":       s.OtherRequests.Load(),
		},
		"token": map[string]interface{}{
			"exchanges":  s.TokenExchanges.Load(),
			"failures":   s.TokenExchangeFailures.Load(),
			"cache_hits": s.TokenCacheHits.Load(),
		},
		"upstream": map[string]interface{}{
			UpstreamPlaying:        s.UpstreamPlayingCount.Load(),
			UpstreamPaused:         s.UpstreamPausedCount.Load(),
			UpstreamNothingPlaying: s.UpstreamNothingPlayingCount.Load(),
			UpstreamFailed:         s.UpstreamErrorCount.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"allowed":  s.RateLimitAllowed.Load(),
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
