package domain

// SearchResult is a single web search hit used as evidence.
type SearchResult struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet"`
	Score   *float64 `json:"score,omitempty"`
}

// QueryResults holds the hits returned for one search query.
type QueryResults struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Research is the evidence collected for a session, keyed by query.
// Entries keep the order in which the queries were issued.
type Research []QueryResults

// Lookup returns the results recorded for query.
func (r Research) Lookup(query string) ([]SearchResult, bool) {
	for _, entry := range r {
		if entry.Query == query {
			return entry.Results, true
		}
	}
	return nil, false
}

// Queries returns the queries in issue order.
func (r Research) Queries() []string {
	out := make([]string, 0, len(r))
	for _, entry := range r {
		out = append(out, entry.Query)
	}
	return out
}

// TotalResults counts hits across all queries.
func (r Research) TotalResults() int {
	total := 0
	for _, entry := range r {
		total += len(entry.Results)
	}
	return total
}

// ProductRecommendation is a grounded suggestion shown to the shopper.
type ProductRecommendation struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	WhyItFits  string   `json:"why_it_fits"`
	Highlights []string `json:"highlights"`
	Watchouts  []string `json:"watchouts"`
	BestFor    string   `json:"best_for"`
}

// RecommendationResult is the outcome of the recommendation step.
// DiscardedCount counts model suggestions whose URL was not found in the evidence.
type RecommendationResult struct {
	Recommendations   []ProductRecommendation `json:"recommendations"`
	ComparisonInsight string                  `json:"comparison_insight"`
	DiscardedCount    int                     `json:"discarded_count"`
}
