package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/logger"
)

// maxQueryLength keeps drafted queries within what search APIs accept comfortably
const maxQueryLength = 200

// QueryPreprocessor cleans model-drafted search queries and builds retailer queries
type QueryPreprocessor struct {
	logger *zap.Logger
}

// Compiled regex patterns for query preprocessing
var (
	// Matches list markers a model may prefix queries with: "1.", "2)", "-", "*", "•"
	listMarkerPattern = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)

	// Matches wrapping quotes or backticks
	wrappingQuotePattern = regexp.MustCompile("^[\"'`“”‘’]+|[\"'`“”‘’]+$")

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)

	// Lone punctuation left at either end after cleanup
	edgePunctuationPattern = regexp.MustCompile(`^[,;:\-]+\s*|\s*[,;:\-]+$`)
)

// queryNoiseWords are filler words that never narrow a retailer search
var queryNoiseWords = map[string]bool{
	"best":     true,
	"top":      true,
	"buy":      true,
	"cheap":    true,
	"new":      true,
	"online":   true,
	"review":   true,
	"reviews":  true,
	"product":  true,
	"products": true,
	"for":      true,
	"the":      true,
	"a":        true,
	"an":       true,
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(l *zap.Logger) *QueryPreprocessor {
	return &QueryPreprocessor{
		logger: logger.OrNop(l),
	}
}

// CleanQuery normalizes a single drafted query: list markers and wrapping
// quotes are removed, whitespace is collapsed and the length is capped at a
// word boundary. Returns "" when nothing usable remains.
func (p *QueryPreprocessor) CleanQuery(query string) string {
	original := query

	// Step 1: Remove list markers (e.g., "1. ", "- ")
	cleaned := listMarkerPattern.ReplaceAllString(query, "")

	// Step 2: Normalize whitespace
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	// Step 3: Remove wrapping quotes
	cleaned = strings.TrimSpace(wrappingQuotePattern.ReplaceAllString(cleaned, ""))

	// Step 4: Limit length, cutting at a word boundary when possible
	cleaned = limitLength(cleaned, maxQueryLength)

	if cleaned != original {
		p.logger.Debug("query cleaned", zap.String("input", original), zap.String("output", cleaned))
	}

	return cleaned
}

// CleanQueries cleans every query and drops the ones left empty.
// Order is preserved and repeats are kept.
func (p *QueryPreprocessor) CleanQueries(queries []string) []string {
	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if c := p.CleanQuery(q); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

// BuildCatalogQuery joins a category and its search terms into a retailer query.
// Filler words are dropped from the terms, never from the category itself.
func (p *QueryPreprocessor) BuildCatalogQuery(category string, terms []string) string {
	parts := []string{strings.TrimSpace(category)}

	for _, term := range terms {
		kept := removeNoiseWords(term)
		if kept != "" {
			parts = append(parts, kept)
		}
	}

	query := multiSpacePattern.ReplaceAllString(strings.Join(parts, " "), " ")
	query = edgePunctuationPattern.ReplaceAllString(strings.TrimSpace(query), "")
	query = limitLength(query, maxQueryLength)

	p.logger.Debug("catalog query built", zap.String("category", category), zap.String("query", query))
	return query
}

// removeNoiseWords removes filler terms from the query, keeping original casing
func removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		// Clean punctuation from word for checking
		cleanWord := strings.Trim(strings.ToLower(word), ",.!?;:-'\"")

		if !queryNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}

func limitLength(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	// Try to cut at word boundary
	if lastSpace := strings.LastIndex(cut, " "); lastSpace > len(cut)/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}
