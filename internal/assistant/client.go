// Package assistant drafts policy sections and answers policy questions
// through a generative-text backend. Calls are stateless.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jun/policydraft/internal/domain"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

const msgNoGenerator = "AI client is not configured. Set GEMINI_API_KEY."

// Config configures a Client.
type Config struct {
	Model     string
	CorpusURL string
	Timeout   time.Duration
}

// Client builds prompts and maps backend failures into domain errors.
type Client struct {
	gen    Generator
	cfg    Config
	logger *slog.Logger
}

func NewClient(gen Generator, cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gen: gen, cfg: cfg, logger: logger}
}

// DraftSection asks for a markdown section on topic, given the document so far.
func (c *Client) DraftSection(ctx context.Context, topic, document string) (string, error) {
	if err := validation.Validate(strings.TrimSpace(topic), validation.Required); err != nil {
		return "", &domain.ValidationError{Message: "topic " + err.Error()}
	}
	return c.generate(ctx, "draft", draftPrompt(topic, document), draftInstruction(c.cfg.CorpusURL))
}

// AnswerQuestion answers strictly from the reference corpus.
func (c *Client) AnswerQuestion(ctx context.Context, question string) (string, error) {
	if err := validation.Validate(strings.TrimSpace(question), validation.Required); err != nil {
		return "", &domain.ValidationError{Message: "question " + err.Error()}
	}
	return c.generate(ctx, "answer", question, answerInstruction(c.cfg.CorpusURL))
}

func (c *Client) generate(ctx context.Context, mode, prompt, instruction string) (string, error) {
	if c.gen == nil {
		return "", &domain.InitializationError{Message: msgNoGenerator}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := c.gen.Generate(ctx, c.cfg.Model, prompt, instruction)
	if err != nil {
		c.logger.Error("generation failed", "mode", mode, "model", c.cfg.Model, "error", err)
		return "", &domain.BackendError{
			Message: "Failed to get response from AI model: " + err.Error(),
			Err:     err,
		}
	}
	c.logger.Debug("generation finished", "mode", mode, "model", c.cfg.Model, "duration", time.Since(start))

	if text == "" {
		c.logger.Warn("empty generation", "mode", mode)
		return EmptyResponse, nil
	}
	return text, nil
}
