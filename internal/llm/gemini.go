package llm

import (
	"context"
	"fmt"
	"log/slog"

	genai "google.golang.org/genai"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// Gemini streams responses from the Gemini API via the official genai
// client.
type Gemini struct {
	cli    *genai.Client
	model  string
	logger log.Logger
}

var _ Streamer = (*Gemini)(nil)

// NewGemini creates a Gemini streamer. The API key is read by the client
// from GEMINI_API_KEY when apiKey is empty.
func NewGemini(ctx context.Context, apiKey, model string, logger log.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{cli: cli, model: model, logger: logger}, nil
}

func (g *Gemini) Stream(ctx context.Context, prompt string, fn func(string) error) error {
	g.logger.Debug("gemini request", "model", g.model, "prompt_bytes", len(prompt))

	contents := []*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, contents, nil) {
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			if err := fn(part.Text); err != nil {
				return err
			}
		}
	}
	return nil
}
