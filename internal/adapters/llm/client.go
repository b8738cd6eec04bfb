// Package llm is the text-generation adapter behind the ai_gemini node. It
// talks to Gemini through its OpenAI-compatible endpoint and falls back to a
// labeled placeholder when no credential is configured.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-2.0-flash"

	// OfflineMarker starts every placeholder response.
	OfflineMarker = "[SIMULATED GEMINI RESPONSE]"
	// NoResponseText is returned when the API answers with no text.
	NoResponseText = "No response generated."
	// ErrorPrefix starts the text returned when a request fails.
	ErrorPrefix = "Error generating content: "
)

// Config holds the client settings.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	OfflineDelay time.Duration
	MaxTokens    int
	Temperature  float32
}

// Client wraps the OpenAI client with the offline fallback
type Client struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSleep replaces the wait used for the offline delay.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewClient creates a client. An empty APIKey yields an offline client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OfflineDelay < 0 {
		cfg.OfflineDelay = 0
	}

	c := &Client{cfg: cfg, logger: slog.Default(), sleep: wait}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		c.client = openai.NewClientWithConfig(oc)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Online reports whether a credential is configured.
func (c *Client) Online() bool { return c.client != nil }

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate returns generated text for prompt. It never fails: offline it
// returns the placeholder, and request errors come back as ErrorPrefix text.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	if !c.Online() {
		if err := c.sleep(ctx, c.cfg.OfflineDelay); err != nil {
			return ErrorPrefix + err.Error()
		}
		return OfflineResponse(prompt)
	}

	text, err := c.CreateChatCompletion(ctx, prompt)
	if err != nil {
		c.logger.Warn("llm: generation failed", slog.String("model", c.cfg.Model), slog.Any("error", err))
		return ErrorPrefix + err.Error()
	}
	if strings.TrimSpace(text) == "" {
		return NoResponseText
	}
	return text
}

// CreateChatCompletion sends prompt as a single user message.
func (c *Client) CreateChatCompletion(ctx context.Context, prompt string) (string, error) {
	if !c.Online() {
		return "", fmt.Errorf("no API key configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// OfflineResponse is the placeholder returned when no credential is set.
func OfflineResponse(prompt string) string {
	return OfflineMarker + "\n\n" +
		fmt.Sprintf("I have analyzed your request: %q.\n\n", prompt) +
		"Since no API key was provided in the environment variables, this is a placeholder " +
		"response demonstrating where the AI content would appear.\n\n" +
		"In a real scenario, I would be generating complex text, code, or data structures here."
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
