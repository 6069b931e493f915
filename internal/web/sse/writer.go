// Package sse provides Server-Sent Events utilities for streaming
// responses.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Writer wraps an http.ResponseWriter for SSE streaming. Payloads are
// JSON-encoded in the data field.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates an SSE writer and sets the stream headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with a JSON payload.
func (w *Writer) WriteEvent(ctx context.Context, event string, payload any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return w.write(event, string(data))
}

// WriteError sends an error event with a code and message.
func (w *Writer) WriteError(code, message string) error {
	data, err := json.Marshal(map[string]string{"code": code, "message": message})
	if err != nil {
		return fmt.Errorf("marshal error payload: %w", err)
	}
	return w.write("error", string(data))
}

// write emits one event in wire format. Multi-line data gets one data:
// prefix per line per the SSE spec.
func (w *Writer) write(event, data string) error {
	if _, err := fmt.Fprintf(w.w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	w.flusher.Flush()
	return nil
}
