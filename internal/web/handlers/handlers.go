// Package handlers provides the HTTP handlers for the boltd API: deploy,
// analytics, chat streaming, and health probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// writeError emits the JSON error surface every endpoint shares.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON emits a JSON response body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// validSessionID rejects session ids that could escape the per-session
// workspace directory.
func validSessionID(id string) bool {
	if id == "" || id == "." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
