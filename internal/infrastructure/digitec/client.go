package digitec

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/httpclient"
)

// DefaultListingURL renders the digitec.ch search page as markdown
const DefaultListingURL = "https://r.jina.ai/https://www.digitec.ch/en/s1/search"

// Config holds settings for the listing client
type Config struct {
	ListingURL        string
	RequestsPerMinute int
	RetryDelay        time.Duration
	Logger            *zap.Logger
}

// Client fetches digitec.ch search results as markdown
type Client struct {
	http       *httpclient.Client
	listingURL string
}

// NewClient creates a listing client
func NewClient(cfg Config) *Client {
	listingURL := cfg.ListingURL
	if listingURL == "" {
		listingURL = DefaultListingURL
	}

	return &Client{
		http: httpclient.New(httpclient.Config{
			Name:              "digitec",
			Failure:           domain.ErrRetailerFailure,
			RequestsPerMinute: cfg.RequestsPerMinute,
			RetryDelay:        cfg.RetryDelay,
			Logger:            cfg.Logger,
		}),
		listingURL: listingURL,
	}
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.http.SetDebug(debug)
}

// FetchListing returns the search results page for query
func (c *Client) FetchListing(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Add("q", query)
	reqURL := fmt.Sprintf("%s?%s", c.listingURL, params.Encode())

	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("User-Agent", "BuyWithMe/1.0")
		r.Header.Set("Accept", "text/plain, text/markdown")
		return r, nil
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
