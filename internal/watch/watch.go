// Package watch reports workspace file changes through a pluggable
// backend. The fsnotify backend is preferred; a polling fallback covers
// filesystems without inotify support.
package watch

import (
	"log/slog"
	"time"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// Kind classifies a change.
type Kind string

const (
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
)

// Change is one observed file change. Path is relative to the watched
// root, slash-separated.
type Change struct {
	Path string
	Kind Kind
}

// Watcher delivers workspace changes until closed.
type Watcher interface {
	// Events yields observed changes. The channel is closed by Close.
	Events() <-chan Change
	// Close stops watching and releases resources.
	Close() error
}

// DefaultIgnoreDirs are directory names never watched.
var DefaultIgnoreDirs = []string{"node_modules", ".git", "dist", ".next", "build", "__pycache__"}

// New returns a watcher for root, preferring fsnotify and falling back to
// polling when the notify backend cannot start.
func New(root string, logger log.Logger) (Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if w, err := newNotify(root, logger); err == nil {
		return w, nil
	} else {
		logger.Warn("fsnotify unavailable, falling back to polling", "error", err)
	}
	return newPolling(root, 2*time.Second, logger)
}

func ignored(name string) bool {
	for _, d := range DefaultIgnoreDirs {
		if name == d {
			return true
		}
	}
	return false
}
