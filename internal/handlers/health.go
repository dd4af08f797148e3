// internal/handlers/health.go
package handlers

import (
	"net/http"
	"time"
)

// RootHandler answers the banner line used by uptime probes.
func RootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Quiz Live server running"))
}

// HealthHandler reports liveness with the current server time in unix
// milliseconds.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().UnixMilli(),
	})
}
