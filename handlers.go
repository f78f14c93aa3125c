package main

import (
	"net/http"

	"now-playing-go/circuitbreaker"
	"now-playing-go/logcolors"
	"now-playing-go/services/spotify"
	"now-playing-go/stats"

	log "github.com/sirupsen/logrus"
)

func getNowPlaying(w http.ResponseWriter, r *http.Request) {
	snap, err := nowPlaying.NowPlaying(r.Context())
	if err != nil {
		// Never echo the cause; it may come from the token endpoint.
		log.Errorf("%s Error in /api/now-playing: %v", logcolors.LogNowPlaying, err)
		Respond(w, r).Error(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to fetch from Spotify",
			Kind:  spotify.ErrorKind(err),
		})
		return
	}

	playback := "not_playing"
	if snap.IsPlaying {
		playback = "playing"
	}
	Respond(w, r).SetPlayback(playback).Raw(snap.Bytes())
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}

	if tokenBreaker != nil {
		state := tokenBreaker.State()
		health["circuit_breaker"] = state.String()
		if state == circuitbreaker.StateOpen {
			health["status"] = "degraded"
			health["circuit_breaker_retry_in"] = tokenBreaker.TimeUntilRetry().String()
		}
	}

	if tokenStatus != nil {
		if expiry, cached := tokenStatus.TokenStatus(); cached {
			health["token_expires"] = expiry.UTC().Format("2006-01-02 15:04:05")
		}
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	if tokenBreaker != nil {
		snapshot["circuit_breaker"] = map[string]interface{}{
			"state":              tokenBreaker.State().String(),
			"failures":           tokenBreaker.Failures(),
			"cooldown_remaining": tokenBreaker.TimeUntilRetry().String(),
		}
	}

	Respond(w, r).JSON(snapshot)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if tokenBreaker == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "Circuit breaker not configured"})
		return
	}

	Respond(w, r).JSON(CircuitBreakerStatus{
		State:          tokenBreaker.State().String(),
		Failures:       tokenBreaker.Failures(),
		TimeUntilRetry: tokenBreaker.TimeUntilRetry().String(),
		Config: CircuitBreakerConfig{
			Threshold:   conf.Configuration.CircuitBreakerThreshold,
			CooldownSec: conf.Configuration.CircuitBreakerCooldownSecs,
		},
	})
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if tokenBreaker == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "Circuit breaker not configured"})
		return
	}

	tokenBreaker.Reset()
	log.Infof("%s Reset via API", logcolors.CircuitBreakerPrefix("token"))

	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Use /api/now-playing to get the track currently playing on Spotify.",
		"endpoints": map[string]string{
			"GET /api/now-playing":       "Current playback, passed through from Spotify, or {\"is_playing\":false}",
			"GET /health":                "Service health and circuit breaker state",
			"GET /stats":                 "Request, token and upstream counters (admin)",
			"GET /circuit-breaker":       "Token exchange circuit breaker status (admin)",
			"POST /circuit-breaker/reset": "Close the circuit breaker (admin)",
		},
	})
}
