package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/httpclient"
)

// Config holds settings for the chat completions client
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerMinute int
	Timeout           time.Duration
	Logger            *zap.Logger
}

// Client calls an OpenAI-compatible chat completions endpoint.
// Each call is sent once; failures are returned to the caller.
type Client struct {
	http     *httpclient.Client
	apiKey   string
	endpoint string
	model    string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// NewClient creates a chat completions client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: %w", domain.ErrMissingAPIKey)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		// Large models can take a while to answer
		timeout = 2 * time.Minute
	}

	return &Client{
		http: httpclient.New(httpclient.Config{
			Name:              "openai",
			Failure:           domain.ErrLLMFailure,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           timeout,
			MaxAttempts:       1,
			Logger:            cfg.Logger,
		}),
		apiKey:   cfg.APIKey,
		endpoint: completionsURL(cfg.BaseURL),
		model:    cfg.Model,
	}, nil
}

// completionsURL appends /chat/completions unless the base already ends with it
func completionsURL(baseURL string) string {
	url := strings.TrimRight(baseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	if !strings.HasSuffix(url, "/chat/completions") {
		url += "/chat/completions"
	}
	return url
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.http.SetDebug(debug)
}

// Model returns the model the client asks for
func (c *Client) Model() string {
	return c.model
}

// Generate sends the system prompt followed by messages and returns the reply text
func (c *Client) Generate(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, chatMessage{Role: "system", Content: strings.TrimSpace(systemPrompt)})
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		return r, nil
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", domain.ErrLLMFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", domain.ErrLLMFailure)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
