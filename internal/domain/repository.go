package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// A zero ttl keeps the entry until it is deleted.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LLMClient defines the interface for the language model completion service
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// SearchClient defines the interface for the web search service
type SearchClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// RetailerClient fetches a retailer's search results page rendered as markdown
type RetailerClient interface {
	FetchListing(ctx context.Context, query string) (string, error)
}
