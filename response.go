package main

import (
	"encoding/json"
	"net/http"
)

// APIResponse handles consistent header setting and JSON responses.
type APIResponse struct {
	w        http.ResponseWriter
	r        *http.Request
	playback string
}

// Respond creates a response helper for the request
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetPlayback sets the X-Playback header value
func (a *APIResponse) SetPlayback(playback string) *APIResponse {
	a.playback = playback
	return a
}

// writeHeaders sets all standard headers
func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")
	// Playback state changes every second; nothing here is cacheable.
	a.w.Header().Set("Cache-Control", "no-store")

	if a.playback != "" {
		a.w.Header().Set("X-Playback", a.playback)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Raw writes an already encoded JSON body unchanged (200 OK)
func (a *APIResponse) Raw(body []byte) error {
	a.writeHeaders()
	_, err := a.w.Write(body)
	return err
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}
