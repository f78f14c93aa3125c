package main

import (
	"context"
	"time"

	"now-playing-go/services/spotify"
)

// nowPlayingSource is what the now-playing handler reads from.
type nowPlayingSource interface {
	NowPlaying(ctx context.Context) (spotify.Snapshot, error)
}

// tokenStatusSource reports the cached access token, when caching is on.
type tokenStatusSource interface {
	TokenStatus() (expiry time.Time, cached bool)
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// CircuitBreakerStatus is the response format for /circuit-breaker
type CircuitBreakerStatus struct {
	State          string               `json:"state"`
	Failures       int                  `json:"failures"`
	TimeUntilRetry string               `json:"time_until_retry"`
	Config         CircuitBreakerConfig `json:"config"`
}

// CircuitBreakerConfig echoes the breaker settings
type CircuitBreakerConfig struct {
	Threshold   int `json:"threshold"`
	CooldownSec int `json:"cooldown_sec"`
}
