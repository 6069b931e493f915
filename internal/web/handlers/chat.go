package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/qcjiangqianchen/bolt.diy/internal/llm"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/parser"
	"github.com/qcjiangqianchen/bolt.diy/internal/session"
	"github.com/qcjiangqianchen/bolt.diy/internal/web/sse"
)

// ChatConfig configures the chat handler.
type ChatConfig struct {
	Logger   log.Logger
	Streamer llm.Streamer
	// Session returns the session-scoped state for an id, creating it on
	// first use. The handler never closes the session: a start action's
	// dev process must keep serving after the message stream ends, until
	// the session itself is ended.
	Session func(sessionID string) (*session.Session, error)
}

// Chat handles POST /api/chat: it streams the model response, parses the
// artifact markup out of it, and is the single subscriber feeding parser
// events into the session's artifact registry and action runner. Clients
// receive visible text chunks and the structural events over SSE.
type Chat struct {
	logger   log.Logger
	streamer llm.Streamer
	session  func(sessionID string) (*session.Session, error)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Prompt    string `json:"prompt"`
}

// NewChat creates the chat handler.
func NewChat(cfg ChatConfig) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{logger: logger, streamer: cfg.Streamer, session: cfg.Session}
}

// RegisterRoutes registers the chat routes on the given mux.
func (c *Chat) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", c.Handle)
}

func (c *Chat) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if !validSessionID(req.SessionID) {
		writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess, err := c.session(req.SessionID)
	if err != nil {
		c.logger.Error("session setup failed", "session_id", req.SessionID, "error", err)
		_ = writer.WriteError("session_error", "failed to set up session workspace")
		return
	}

	ctx := r.Context()
	p := parser.New(c.logger)

	dispatch := func(visible string, events []parser.Event) {
		if visible != "" {
			if err := writer.WriteEvent(ctx, "chunk", map[string]string{"text": visible}); err != nil {
				return
			}
		}
		for _, ev := range events {
			c.record(sess, ev)
			if err := sess.Runner.Apply(ctx, ev); err != nil {
				c.logger.Warn("action failed", "message_id", req.MessageID, "error", err)
			}
			name, payload := eventPayload(ev)
			if err := writer.WriteEvent(ctx, name, payload); err != nil {
				return
			}
		}
	}

	var full strings.Builder
	streamErr := c.streamer.Stream(ctx, req.Prompt, func(chunk string) error {
		full.WriteString(chunk)
		visible, events := p.Parse(req.MessageID, full.String())
		dispatch(visible, events)
		return ctx.Err()
	})

	visible, events := p.Finalize(req.MessageID, full.String())
	dispatch(visible, events)

	if streamErr != nil {
		c.logger.Error("chat stream failed", "message_id", req.MessageID, "error", streamErr)
		_ = writer.WriteError("stream_error", "model stream failed")
		return
	}
	_ = writer.WriteEvent(ctx, "done", map[string]string{
		"sessionId": req.SessionID,
		"messageId": req.MessageID,
	})
}

// record mirrors a parser event into the session's artifact registry so
// the table reflects everything the model opened, in emission order.
func (c *Chat) record(sess *session.Session, ev parser.Event) {
	switch e := ev.(type) {
	case parser.ArtifactOpen:
		sess.Artifacts.Open(e.ArtifactID, e.MessageID, e.Title, e.Kind)
	case parser.ActionOpen:
		if err := sess.Artifacts.AppendAction(e.ArtifactID, e.ActionID); err != nil {
			c.logger.Warn("recording action", "action_id", e.ActionID, "error", err)
		}
	case parser.ArtifactClose:
		if err := sess.Artifacts.Close(e.ArtifactID); err != nil {
			c.logger.Warn("closing artifact", "artifact_id", e.ArtifactID, "error", err)
		}
	}
}

// eventPayload maps a parser event to its SSE event name and a flat JSON
// payload carrying the action type discriminant.
func eventPayload(ev parser.Event) (string, any) {
	switch e := ev.(type) {
	case parser.ArtifactOpen:
		return "artifactOpen", map[string]any{
			"artifactId": e.ArtifactID,
			"messageId":  e.MessageID,
			"title":      e.Title,
			"kind":       e.Kind,
		}
	case parser.ArtifactClose:
		return "artifactClose", map[string]any{
			"artifactId": e.ArtifactID,
			"messageId":  e.MessageID,
		}
	case parser.ActionOpen:
		return "actionOpen", map[string]any{
			"actionId":   e.ActionID,
			"artifactId": e.ArtifactID,
			"messageId":  e.MessageID,
			"type":       e.Action.Type(),
			"action":     e.Action,
		}
	case parser.ActionStream:
		return "actionStream", map[string]any{
			"actionId":   e.ActionID,
			"artifactId": e.ArtifactID,
			"messageId":  e.MessageID,
			"delta":      e.Delta,
		}
	case parser.ActionClose:
		return "actionClose", map[string]any{
			"actionId":   e.ActionID,
			"artifactId": e.ArtifactID,
			"messageId":  e.MessageID,
			"type":       e.Action.Type(),
			"action":     e.Action,
		}
	default:
		return "event", e
	}
}
