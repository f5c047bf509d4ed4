package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedModelResponse is returned when the language model output cannot be parsed
	ErrMalformedModelResponse = errors.New("malformed model response")

	// ErrNoSearchQueries is returned when the model drafts no usable search queries
	ErrNoSearchQueries = errors.New("language model produced no search queries")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrLLMFailure is returned when the language model API request fails
	ErrLLMFailure = errors.New("language model request failed")

	// ErrSearchFailure is returned when the web search API request fails
	ErrSearchFailure = errors.New("search request failed")

	// ErrRetailerFailure is returned when the retailer listing cannot be fetched
	ErrRetailerFailure = errors.New("retailer request failed")

	// ErrMissingAPIKey is returned by adapters constructed without credentials
	ErrMissingAPIKey = errors.New("api key is missing")
)

// MalformedResponseError carries the raw model text that failed to parse.
type MalformedResponseError struct {
	Operation string
	Raw       string
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: the language model returned an invalid JSON payload: %v\n%s", e.Operation, e.Err, e.Raw)
}

// Unwrap lets errors.Is match both the sentinel and the underlying cause.
func (e *MalformedResponseError) Unwrap() []error {
	return []error{ErrMalformedModelResponse, e.Err}
}
