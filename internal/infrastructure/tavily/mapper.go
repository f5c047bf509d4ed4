package tavily

import (
	"strings"

	"github.com/buywithme/assistant/internal/domain"
)

// untitledResult replaces blank titles
const untitledResult = "Untitled result"

type searchResponse struct {
	Results []searchHit `json:"results"`
}

type searchHit struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Content string   `json:"content"`
	Snippet string   `json:"snippet"`
	Score   *float64 `json:"score"`
}

// mapResults converts Tavily hits to domain search results.
// The snippet is the page content, falling back to Tavily's own snippet.
func mapResults(hits []searchHit) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, mapHit(hit))
	}
	return results
}

func mapHit(hit searchHit) domain.SearchResult {
	title := strings.TrimSpace(hit.Title)
	if title == "" {
		title = untitledResult
	}

	snippet := hit.Content
	if strings.TrimSpace(snippet) == "" {
		snippet = hit.Snippet
	}

	return domain.SearchResult{
		Title:   title,
		URL:     strings.TrimSpace(hit.URL),
		Snippet: snippet,
		Score:   hit.Score,
	}
}
