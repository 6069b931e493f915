package parser

import "github.com/qcjiangqianchen/bolt.diy/internal/artifact"

// Event is the closed union of parse events.
//
// Events for one message are strictly ordered and fire exactly once: a
// replayed or growing input prefix never re-emits an event that already
// fired. The chat handler is the single subscriber; it forwards action
// events to the runner in order.
type Event interface {
	isEvent()
}

// ArtifactOpen fires when an artifact opening tag is fully parsed.
type ArtifactOpen struct {
	ArtifactID string
	MessageID  string
	Title      string
	Kind       artifact.Kind
}

// ArtifactClose fires when the matching artifact closing tag is parsed.
type ArtifactClose struct {
	ArtifactID string
	MessageID  string
}

// ActionOpen fires when an action begins.
//
// For file actions it fires as soon as the opening tag is parsed, with
// Action carrying the file path and empty content. For shell, start,
// build and deploy actions the whole body is buffered first, so ActionOpen
// fires immediately before the matching ActionClose.
type ActionOpen struct {
	ActionID   string
	ArtifactID string
	MessageID  string
	Action     artifact.Action
}

// ActionStream fires for file actions as body content arrives.
//
// Delta is the newly resolved content since the previous event; Content is
// the full accumulated body so far. Concatenating every Delta (in order)
// reproduces the final body byte for byte; Content supports overwrite-style
// writes without the subscriber keeping its own accumulator.
type ActionStream struct {
	ActionID   string
	ArtifactID string
	MessageID  string
	Delta      string
	Content    string
}

// ActionClose fires when an action's closing tag is parsed. Action carries
// the complete payload, including the final accumulated file content.
type ActionClose struct {
	ActionID   string
	ArtifactID string
	MessageID  string
	Action     artifact.Action
}

func (ArtifactOpen) isEvent()  {}
func (ArtifactClose) isEvent() {}
func (ActionOpen) isEvent()    {}
func (ActionStream) isEvent()  {}
func (ActionClose) isEvent()   {}
