package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/buywithme/assistant/internal/domain"
)

// llmRequest records one call to the stub model
type llmRequest struct {
	System   string
	Messages []domain.Message
}

// StubLLM returns queued replies in order and records every request
type StubLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llmRequest
}

func NewStubLLM(replies ...string) *StubLLM {
	return &StubLLM{replies: replies}
}

func (m *StubLLM) Generate(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, llmRequest{System: systemPrompt, Messages: messages})
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("model called more times than expected")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *StubLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *StubLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ""
	}
	msgs := m.requests[len(m.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

func (m *StubLLM) LastSystem() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ""
	}
	return m.requests[len(m.requests)-1].System
}

// searchCall records one call to the stub search client
type searchCall struct {
	Query      string
	MaxResults int
}

// StubSearch serves canned results per query; unknown queries have no hits
type StubSearch struct {
	mu      sync.Mutex
	results map[string][]domain.SearchResult
	errs    map[string]error
	delay   map[string]time.Duration
	calls   []searchCall
}

func NewStubSearch() *StubSearch {
	return &StubSearch{
		results: make(map[string][]domain.SearchResult),
		errs:    make(map[string]error),
		delay:   make(map[string]time.Duration),
	}
}

func (m *StubSearch) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, searchCall{Query: query, MaxResults: maxResults})
	results, err, delay := m.results[query], m.errs[query], m.delay[query]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (m *StubSearch) Calls() []searchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]searchCall(nil), m.calls...)
}

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	deleted   []string
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockRetailerClient returns a fixed listing and counts fetches
type MockRetailerClient struct {
	listing string
	err     error
	queries []string
}

func (m *MockRetailerClient) FetchListing(ctx context.Context, query string) (string, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return "", m.err
	}
	return m.listing, nil
}
