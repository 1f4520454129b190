package assistant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Generator is the generative-text backend: one prompt in, one text out.
type Generator interface {
	Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error)
}

// GenaiGenerator calls the Gemini API through google.golang.org/genai.
type GenaiGenerator struct {
	client *genai.Client
}

// NewGenaiGenerator creates a Gemini client for apiKey.
func NewGenaiGenerator(ctx context.Context, apiKey string) (*GenaiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenaiGenerator{client: client}, nil
}

func (g *GenaiGenerator) Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
