package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// publicPaths are exact paths that never need the admin key
var publicPaths = []string{"/", "/api/now-playing", "/health"}

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	router.HandleFunc("/api/now-playing", getNowPlaying).Methods(http.MethodGet)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}
