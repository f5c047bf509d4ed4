package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/httpclient"
	"github.com/buywithme/assistant/internal/logger"
)

// Config holds settings for the Tavily search client
type Config struct {
	APIKey  string
	BaseURL string
	// SearchDepth is "basic" or "advanced"
	SearchDepth       string
	RequestsPerMinute int
	Logger            *zap.Logger
}

// Client calls the Tavily search API. Failed searches are not retried.
type Client struct {
	http     *httpclient.Client
	apiKey   string
	endpoint string
	depth    string
	logger   *zap.Logger
}

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeImages bool   `json:"include_images"`
}

// NewClient creates a Tavily search client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("tavily: %w", domain.ErrMissingAPIKey)
	}

	depth := cfg.SearchDepth
	if depth == "" {
		depth = "advanced"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.tavily.com"
	}

	l := logger.OrNop(cfg.Logger)

	return &Client{
		http: httpclient.New(httpclient.Config{
			Name:              "tavily",
			Failure:           domain.ErrSearchFailure,
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxAttempts:       1,
			Logger:            l,
		}),
		apiKey:   cfg.APIKey,
		endpoint: base + "/search",
		depth:    depth,
		logger:   l,
	}, nil
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.http.SetDebug(debug)
}

// Search runs one web search and returns at most maxResults hits
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	payload, err := json.Marshal(searchRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: c.depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
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
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", domain.ErrSearchFailure, err)
	}

	results := mapResults(resp.Results)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}

	c.logger.Debug("tavily search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
