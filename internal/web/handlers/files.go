package handlers

import (
	"log/slog"
	"net/http"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/watch"
	"github.com/qcjiangqianchen/bolt.diy/internal/web/sse"
)

// FilesConfig configures the file-watch handler.
type FilesConfig struct {
	Logger log.Logger
	// NewWatcher creates a watcher rooted at the session's workspace
	// directory. The handler closes it when the stream ends.
	NewWatcher func(sessionID string) (watch.Watcher, error)
}

// Files handles GET /api/files/watch: it streams workspace file changes
// for a session over SSE so clients can keep their file tree in sync
// while actions run.
type Files struct {
	logger     log.Logger
	newWatcher func(sessionID string) (watch.Watcher, error)
}

// NewFiles creates the file-watch handler.
func NewFiles(cfg FilesConfig) *Files {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{logger: logger, newWatcher: cfg.NewWatcher}
}

// RegisterRoutes registers the file-watch routes on the given mux.
func (f *Files) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/files/watch", f.Handle)
}

func (f *Files) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if !validSessionID(sessionID) {
		writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}

	watcher, err := f.newWatcher(sessionID)
	if err != nil {
		f.logger.Error("workspace watcher setup failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to watch session workspace")
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			f.logger.Warn("watcher close failed", "session_id", sessionID, "error", err)
		}
	}()

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-watcher.Events():
			if !ok {
				return
			}
			err := writer.WriteEvent(ctx, "fileChange", map[string]string{
				"path": change.Path,
				"kind": string(change.Kind),
			})
			if err != nil {
				return
			}
		}
	}
}
