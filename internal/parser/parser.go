// Package parser turns the assistant's streamed markup into ordered events.
//
// The assistant emits project units as <boltArtifact> tags wrapping
// <boltAction> tags. Responses arrive as a monotonically growing text
// buffer delivered in arbitrary-sized chunks, so any tag can be split at
// any byte. Parse is called with the full accumulated text per message and
// resumes from a per-message cursor: already-processed spans are never
// re-scanned and events fire exactly once regardless of chunking.
//
// When the available text ends in the middle of what may be a tag, the
// parser stops at the last safe boundary and waits for the next call; it
// never blocks. Malformed or unknown markup degrades to literal text and
// is logged, never raised: a parse anomaly must not take down the chat
// stream.
//
// File action bodies are opaque. Only the literal closing action tag
// terminates a body; markup-like text inside a file (including the string
// "<boltAction") is content, not structure.
package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
)

const (
	artifactTagName = "boltArtifact"
	actionTagName   = "boltAction"

	// maxMessageStates bounds the per-message state cache. Messages are
	// normally finalized explicitly; the LRU catches abandoned streams.
	maxMessageStates = 128
)

type phase int

const (
	phaseOutside phase = iota
	phaseInArtifact
	phaseInFileAction
	phaseInRawAction
)

// messageState is the per-message cursor and state machine position.
type messageState struct {
	pos   int
	phase phase

	artifactID string
	seq        int // action ordinal within the message

	// current action
	actionID   string
	actionType artifact.ActionType
	filePath   string
	source     string
	stage      string
	content    strings.Builder
}

// Parser converts streamed assistant text into artifact/action events.
// One Parser serves one chat session; per-message state lives in an LRU
// so abandoned messages cannot accumulate without bound.
//
// Parser is safe for concurrent use; calls for one message must still be
// delivered in stream order, which the chat handler guarantees.
type Parser struct {
	mu     sync.Mutex
	states *lru.Cache[string, *messageState]
	logger *slog.Logger
}

// New creates a Parser. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	states, err := lru.New[string, *messageState](maxMessageStates)
	if err != nil {
		// Size is a positive constant; lru.New cannot fail.
		panic(fmt.Sprintf("BUG: creating state cache: %v", err))
	}
	return &Parser{states: states, logger: logger}
}

// Parse consumes the full accumulated text for a message and returns the
// newly resolved human-visible text (markup stripped) plus the events that
// fired during this call.
//
// Parse is idempotent over growing prefixes: re-invocation with the same
// or longer input never re-emits events and never returns visible text
// twice. Text between an artifact's actions is structural whitespace and
// is not part of the visible output.
func (p *Parser) Parse(messageID, input string) (string, []Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state(messageID)
	if st.pos > len(input) {
		// The buffer shrank: the message restarted. Start over.
		p.logger.Warn("message buffer shrank, resetting parser state",
			"message_id", messageID, "pos", st.pos, "len", len(input))
		*st = messageState{}
	}

	var visible strings.Builder
	var events []Event

	i := st.pos
scan:
	for i < len(input) {
		switch st.phase {
		case phaseInFileAction, phaseInRawAction:
			rem := input[i:]
			idx, tagLen, holdback := findActionClose(rem)
			if idx < 0 {
				safe := len(rem) - holdback
				if safe > 0 {
					p.appendBody(st, rem[:safe], messageID, &events)
					i += safe
				}
				break scan
			}
			p.appendBody(st, rem[:idx], messageID, &events)
			i += idx + tagLen
			events = p.closeAction(st, messageID, events)

		default: // phaseOutside, phaseInArtifact
			lt := strings.IndexByte(input[i:], '<')
			if lt < 0 {
				if st.phase == phaseOutside {
					visible.WriteString(input[i:])
				}
				i = len(input)
				break scan
			}
			j := i + lt
			if st.phase == phaseOutside {
				visible.WriteString(input[i:j])
			}
			t, kind := scanTag(input[j:])
			switch kind {
			case tagPartial:
				i = j
				break scan
			case tagNone:
				if st.phase == phaseOutside {
					visible.WriteByte('<')
				}
				i = j + 1
			default:
				events = p.handleTag(st, t, messageID, &visible, events)
				i = j + t.length
			}
		}
	}

	st.pos = i
	return visible.String(), events
}

// Finalize flushes a finished message: any held-back tail becomes file
// content or visible text, unclosed actions and artifacts are closed, and
// the per-message state is discarded.
func (p *Parser) Finalize(messageID, input string) (string, []Event) {
	visible, events := p.Parse(messageID, input)

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states.Peek(messageID)
	if !ok {
		return visible, events
	}
	tail := ""
	if st.pos < len(input) {
		tail = input[st.pos:]
	}

	switch st.phase {
	case phaseInFileAction, phaseInRawAction:
		p.logger.Warn("message ended with unclosed action",
			"message_id", messageID, "action_id", st.actionID)
		p.appendBody(st, tail, messageID, &events)
		events = p.closeAction(st, messageID, events)
	default:
		if st.phase == phaseOutside {
			visible += tail
		}
	}
	if st.phase == phaseInArtifact {
		p.logger.Warn("message ended with unclosed artifact",
			"message_id", messageID, "artifact_id", st.artifactID)
		events = append(events, ArtifactClose{ArtifactID: st.artifactID, MessageID: messageID})
	}

	p.states.Remove(messageID)
	return visible, events
}

// Reset drops all state for a message without flushing.
func (p *Parser) Reset(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states.Remove(messageID)
}

func (p *Parser) state(messageID string) *messageState {
	if st, ok := p.states.Get(messageID); ok {
		return st
	}
	st := &messageState{}
	if evicted := p.states.Add(messageID, st); evicted {
		p.logger.Debug("evicted oldest parser message state", "message_id", messageID)
	}
	return st
}

// appendBody adds resolved body bytes to the current action, emitting an
// ActionStream event for file actions.
func (p *Parser) appendBody(st *messageState, body, messageID string, events *[]Event) {
	if body == "" {
		return
	}
	st.content.WriteString(body)
	if st.phase == phaseInFileAction {
		*events = append(*events, ActionStream{
			ActionID:   st.actionID,
			ArtifactID: st.artifactID,
			MessageID:  messageID,
			Delta:      body,
			Content:    st.content.String(),
		})
	}
}

// closeAction finishes the current action and returns to the artifact
// scope. Raw (non-file) actions fire open+close as one logical unit here,
// because their command text must be complete before anything executes.
func (p *Parser) closeAction(st *messageState, messageID string, events []Event) []Event {
	var payload artifact.Action
	switch st.actionType {
	case artifact.TypeFile:
		payload = artifact.FileAction{FilePath: st.filePath, Content: st.content.String()}
	case artifact.TypeShell:
		payload = artifact.ShellAction{Command: strings.TrimSpace(st.content.String())}
	case artifact.TypeStart:
		payload = artifact.StartAction{Command: strings.TrimSpace(st.content.String())}
	case artifact.TypeBuild:
		payload = artifact.BuildAction{Command: strings.TrimSpace(st.content.String())}
	case artifact.TypeDeploy:
		payload = artifact.DeployAction{Source: st.source, Stage: st.stage}
	default:
		p.logger.Warn("dropping action of unknown type",
			"message_id", messageID, "type", string(st.actionType))
	}

	if payload != nil {
		if st.actionType != artifact.TypeFile {
			events = append(events, ActionOpen{
				ActionID:   st.actionID,
				ArtifactID: st.artifactID,
				MessageID:  messageID,
				Action:     payload,
			})
		}
		events = append(events, ActionClose{
			ActionID:   st.actionID,
			ArtifactID: st.artifactID,
			MessageID:  messageID,
			Action:     payload,
		})
	}

	st.phase = phaseInArtifact
	st.actionID = ""
	st.actionType = ""
	st.filePath = ""
	st.source = ""
	st.stage = ""
	st.content.Reset()
	return events
}

// handleTag applies a fully parsed artifact or action tag to the state
// machine. Tags that are illegal in the current state degrade to literal
// text (visible only outside an artifact) and are logged.
func (p *Parser) handleTag(st *messageState, t tag, messageID string, visible *strings.Builder, events []Event) []Event {
	literal := func(reason string) []Event {
		p.logger.Warn("treating tag as literal text",
			"message_id", messageID, "tag", t.raw, "reason", reason)
		if st.phase == phaseOutside {
			visible.WriteString(t.raw)
		}
		return events
	}

	switch {
	case t.name == artifactTagName && !t.closing:
		if st.phase != phaseOutside {
			return literal("artifact tag inside artifact")
		}
		id := t.attrs["id"]
		if id == "" {
			id = messageID + "-artifact"
		}
		kind := artifact.KindNormal
		if t.attrs["type"] == string(artifact.KindStandalone) {
			kind = artifact.KindStandalone
		}
		st.phase = phaseInArtifact
		st.artifactID = id
		return append(events, ArtifactOpen{
			ArtifactID: id,
			MessageID:  messageID,
			Title:      t.attrs["title"],
			Kind:       kind,
		})

	case t.name == artifactTagName && t.closing:
		if st.phase != phaseInArtifact {
			return literal("artifact close without open")
		}
		ev := ArtifactClose{ArtifactID: st.artifactID, MessageID: messageID}
		st.phase = phaseOutside
		st.artifactID = ""
		return append(events, ev)

	case t.name == actionTagName && !t.closing:
		if st.phase != phaseInArtifact {
			return literal("action tag outside artifact")
		}
		st.seq++
		st.actionID = fmt.Sprintf("%s-a%d", messageID, st.seq)
		st.actionType = artifact.ActionType(t.attrs["type"])
		st.filePath = t.attrs["filePath"]
		st.source = t.attrs["source"]
		st.stage = t.attrs["stage"]
		if st.source == "" {
			st.source = "project"
		}
		if st.stage == "" {
			st.stage = "production"
		}
		st.content.Reset()

		if st.actionType == artifact.TypeFile {
			st.phase = phaseInFileAction
			if err := artifact.ValidateFilePath(st.filePath); err != nil {
				p.logger.Warn("file action has invalid path, body will be ignored",
					"message_id", messageID, "file_path", st.filePath)
				st.actionType = "" // parsed to the close tag, then dropped
				st.phase = phaseInRawAction
				return events
			}
			return append(events, ActionOpen{
				ActionID:   st.actionID,
				ArtifactID: st.artifactID,
				MessageID:  messageID,
				Action:     artifact.FileAction{FilePath: st.filePath},
			})
		}
		st.phase = phaseInRawAction
		return events

	default: // closing action tag outside any action
		return literal("action close without open")
	}
}
