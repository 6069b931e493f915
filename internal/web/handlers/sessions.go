package handlers

import (
	"log/slog"
	"net/http"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// SessionEnder stops a session, aborting its pending actions and killing
// any dev process it started.
type SessionEnder interface {
	End(sessionID string) error
}

// SessionsConfig configures the sessions handler.
type SessionsConfig struct {
	Logger log.Logger
	Ender  SessionEnder
}

// Sessions handles DELETE /api/sessions/{id}: clients call it when the
// user navigates away or restarts, which is the only point besides server
// shutdown where a session's processes are stopped.
type Sessions struct {
	logger log.Logger
	ender  SessionEnder
}

// NewSessions creates the sessions handler.
func NewSessions(cfg SessionsConfig) *Sessions {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{logger: logger, ender: cfg.Ender}
}

// RegisterRoutes registers the session routes on the given mux.
func (s *Sessions) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /api/sessions/{id}", s.HandleEnd)
}

func (s *Sessions) HandleEnd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := s.ender.End(id); err != nil {
		s.logger.Error("ending session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
