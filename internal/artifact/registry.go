package artifact

import (
	"log/slog"
	"sync"
)

// Registry is the per-session, append-only artifact table.
//
// Artifacts are keyed by id and kept in insertion order. A duplicate open
// for a known id updates the title and kind but never creates a second
// entry, so replayed parser events are harmless. Nothing is ever deleted
// while the session lives.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Artifact
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
// A nil logger falls back to slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:   make(map[string]*Artifact),
		logger: logger,
	}
}

// Open records an artifact open. For a known id the title and kind are
// updated in place; otherwise a new entry is appended.
func (r *Registry) Open(id, messageID, title string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.byID[id]; ok {
		a.Title = title
		a.Kind = kind
		r.logger.Debug("artifact reopened", "artifact_id", id)
		return
	}

	r.byID[id] = &Artifact{
		ID:        id,
		MessageID: messageID,
		Title:     title,
		Kind:      kind,
	}
	r.order = append(r.order, id)
	r.logger.Debug("artifact opened", "artifact_id", id, "title", title)
}

// Close marks an artifact closed.
// Returns ErrNotFound for an unknown id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Closed = true
	r.logger.Debug("artifact closed", "artifact_id", id, "actions", len(a.ActionIDs))
	return nil
}

// AppendAction records an action id at the end of the artifact's ordered
// action list. Appending the same action id twice is a no-op, so replayed
// events keep the order intact. Returns ErrNotFound for an unknown
// artifact and ErrClosed when the artifact is already closed.
func (r *Registry) AppendAction(artifactID, actionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[artifactID]
	if !ok {
		return ErrNotFound
	}
	if a.Closed {
		return ErrClosed
	}
	for _, id := range a.ActionIDs {
		if id == actionID {
			return nil
		}
	}
	a.ActionIDs = append(a.ActionIDs, actionID)
	return nil
}

// Get returns a copy of the artifact with the given id.
func (r *Registry) Get(id string) (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return Artifact{}, false
	}
	return r.snapshot(a), true
}

// List returns copies of all artifacts in insertion order.
func (r *Registry) List() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Artifact, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.snapshot(r.byID[id]))
	}
	return out
}

// snapshot copies an artifact, including its action order slice, so the
// caller cannot mutate registry state. Caller must hold at least r.mu.RLock.
func (r *Registry) snapshot(a *Artifact) Artifact {
	cp := *a
	cp.ActionIDs = make([]string, len(a.ActionIDs))
	copy(cp.ActionIDs, a.ActionIDs)
	return cp
}
