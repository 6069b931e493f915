package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Type string
	Data string
}

// ParseSSEEvents parses an SSE response body into structured events.
// Multiple data: lines are joined with newline, an empty line terminates
// an event, data before event defaults to type "message", and ":"
// comment lines are skipped.
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	var current SSEEvent
	var dataLines []string

	flush := func() {
		if current.Type == "" && len(dataLines) == 0 {
			return
		}
		current.Data = strings.Join(dataLines, "\n")
		events = append(events, current)
		current = SSEEvent{}
		dataLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		switch {
		case text == "":
			flush()
		case strings.HasPrefix(text, "event: "):
			current.Type = strings.TrimPrefix(text, "event: ")
		case strings.HasPrefix(text, "data: "):
			if current.Type == "" {
				current.Type = "message"
			}
			dataLines = append(dataLines, strings.TrimPrefix(text, "data: "))
		case strings.HasPrefix(text, ":"):
			// comment, skip
		default:
			t.Fatalf("unexpected SSE line %d: %q", line, text)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan SSE body: %v", err)
	}
	if current.Type != "" {
		t.Fatalf("SSE stream ended without terminating event %q", current.Type)
	}
	return events
}

// FindAllEvents returns all events of a given type, preserving order.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
