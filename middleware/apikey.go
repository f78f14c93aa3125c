package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// AdminHeader carries the operator key for /stats and /circuit-breaker.
const AdminHeader = "X-API-Key"

type adminError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// AdminGuard keeps the operator endpoints behind ADMIN_API_KEY while the
// now-playing read endpoint, health and help stay open to any caller.
type AdminGuard struct {
	key      []byte
	enforce  bool
	openPath map[string]bool
}

// NewAdminGuard builds a guard. With enforce off every request passes.
func NewAdminGuard(key string, enforce bool, openPaths []string) *AdminGuard {
	g := &AdminGuard{
		key:      []byte(key),
		enforce:  enforce,
		openPath: make(map[string]bool, len(openPaths)),
	}
	for _, p := range openPaths {
		g.openPath[p] = true
	}
	if enforce && key == "" {
		log.Warnf("%s ADMIN_API_KEY_REQUIRED is set without ADMIN_API_KEY; admin endpoints stay open", logcolors.LogAPIKey)
	}
	return g
}

// Middleware rejects admin requests without a matching key with 401.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enforce || len(g.key) == 0 || g.openPath[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get(AdminHeader)
		switch {
		case provided == "":
			log.Warnf("%s %s %s without a key from %s", logcolors.LogAPIKey, r.Method, r.URL.Path, r.RemoteAddr)
			writeAdminError(w, adminError{Error: "API key required", Kind: "admin_key_missing"})
		case subtle.ConstantTimeCompare([]byte(provided), g.key) != 1:
			log.Warnf("%s %s %s with a wrong key from %s", logcolors.LogAPIKey, r.Method, r.URL.Path, r.RemoteAddr)
			writeAdminError(w, adminError{Error: "Invalid API key", Kind: "admin_key_invalid"})
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeAdminError(w http.ResponseWriter, body adminError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", AdminHeader)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(body)
}
