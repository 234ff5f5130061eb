// Package genai provides GenAI-enhanced operations using OpenAI API.
//
// Tranquil uses it to phrase a short supportive note after a stress check-in.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ErrNoChoicesReturned is returned when the completion has no choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// adviceSystemPrompt keeps generated advice short and non-clinical.
const adviceSystemPrompt = "You are a calm, supportive wellness companion. " +
	"Reply with two or three short sentences of gentle, practical encouragement. " +
	"Do not diagnose, do not mention medication, and do not repeat the score."

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ClientInterface is implemented by Client and by test doubles.
type ClientInterface interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateAdvice(ctx context.Context, band models.SeverityBand, score int) (string, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a new GenAI client. The key falls back to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client created", "model", cfg.Model)
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: c.model,
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("Client.GeneratePrompt: completion failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateAdvice asks the model for a short supportive message for a stress band.
func (c *Client) GenerateAdvice(ctx context.Context, band models.SeverityBand, score int) (string, error) {
	userPrompt := fmt.Sprintf("My perceived stress check-in just came back %s (%d out of 40). "+
		"What is one small thing I could do today?", band, score)
	advice, err := c.GeneratePrompt(ctx, adviceSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	slog.Debug("Client.GenerateAdvice: advice generated", "band", band, "length", len(advice))
	return advice, nil
}
