// Package llm abstracts the text-generation service the chat endpoint
// consumes. The rest of the system only sees a stream of text chunks.
package llm

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by the disabled streamer.
var ErrNoProvider = errors.New("llm: no provider configured")

// Streamer produces a model response for a prompt as an ordered sequence
// of text chunks. fn is called once per chunk; returning an error stops
// the stream and propagates the error.
type Streamer interface {
	Stream(ctx context.Context, prompt string, fn func(chunk string) error) error
}

// Scripted replays a fixed chunk sequence. Test double.
type Scripted struct {
	Chunks []string
}

func (s *Scripted) Stream(ctx context.Context, _ string, fn func(string) error) error {
	for _, chunk := range s.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Disabled is the streamer used when no provider is configured; every
// call fails with ErrNoProvider.
type Disabled struct{}

func (Disabled) Stream(context.Context, string, func(string) error) error {
	return ErrNoProvider
}
