package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/metrics"
	"github.com/buywithme/assistant/internal/logger"
)

const (
	// DefaultRecommendationCount is how many options are requested from the model
	DefaultRecommendationCount = 3
	// DefaultPerQueryResults bounds the hits fetched for each query
	DefaultPerQueryResults = 5

	unnamedProduct = "Unnamed product"
)

// ResearchConfig holds configuration for the research agent
type ResearchConfig struct {
	RecommendationCount int
	PerQueryResults     int
	// SearchConcurrency bounds parallel search calls; 1 runs queries one at a time
	SearchConcurrency int
	Logger            *zap.Logger
}

// ResearchAgent drafts search queries, collects evidence and turns it into
// recommendations grounded in that evidence.
type ResearchAgent struct {
	llm                 domain.LLMClient
	search              domain.SearchClient
	preprocessor        *QueryPreprocessor
	recommendationCount int
	perQueryResults     int
	searchConcurrency   int
	logger              *zap.Logger
}

// NewResearchAgent creates a research agent with dependencies
func NewResearchAgent(llm domain.LLMClient, search domain.SearchClient, config ResearchConfig) *ResearchAgent {
	count := config.RecommendationCount
	if count <= 0 {
		count = DefaultRecommendationCount
	}

	perQuery := config.PerQueryResults
	if perQuery <= 0 {
		perQuery = DefaultPerQueryResults
	}

	concurrency := config.SearchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	l := logger.OrNop(config.Logger)
	return &ResearchAgent{
		llm:                 llm,
		search:              search,
		preprocessor:        NewQueryPreprocessor(l),
		recommendationCount: count,
		perQueryResults:     perQuery,
		searchConcurrency:   concurrency,
		logger:              l,
	}
}

type queriesReply struct {
	Queries []*string `json:"queries"`
}

// CraftSearchQueries asks the model for a handful of web search queries.
// It fails with domain.ErrNoSearchQueries when no usable query comes back.
func (a *ResearchAgent) CraftSearchQueries(ctx context.Context, topic, shopperSummary string) ([]string, error) {
	var reply queriesReply
	prompt := buildQueryPrompt(topic, shopperSummary)
	if err := generateJSON(ctx, a.llm, a.logger, "draft_queries", querySystemPrompt, prompt, queriesSchema, &reply); err != nil {
		return nil, err
	}

	raw := make([]string, 0, len(reply.Queries))
	for _, q := range reply.Queries {
		if q != nil {
			raw = append(raw, *q)
		}
	}

	queries := a.preprocessor.CleanQueries(raw)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: topic %q", domain.ErrNoSearchQueries, topic)
	}

	a.logger.Info("search queries drafted", zap.String("topic", topic), zap.Strings("queries", queries))
	return queries, nil
}

// CollectResearch runs every query against the search service. Each supplied
// query gets its own entry, in the supplied order, even when it has no hits.
// Any search failure fails the whole call. perQueryResults <= 0 uses the
// configured default.
func (a *ResearchAgent) CollectResearch(ctx context.Context, queries []string, perQueryResults int) (domain.Research, error) {
	if perQueryResults <= 0 {
		perQueryResults = a.perQueryResults
	}

	research := make(domain.Research, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.searchConcurrency)

	for i, query := range queries {
		g.Go(func() error {
			results, err := a.runSearch(gctx, query, perQueryResults)
			if err != nil {
				return fmt.Errorf("search %q: %w", query, err)
			}
			research[i] = domain.QueryResults{Query: query, Results: results}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("research collected",
		zap.Int("queries", len(research)),
		zap.Int("results", research.TotalResults()),
	)
	return research, nil
}

func (a *ResearchAgent) runSearch(ctx context.Context, query string, maxResults int) (results []domain.SearchResult, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
		metrics.SearchCalls.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	results, err = a.search.Search(ctx, query, maxResults)
	if err != nil {
		if !errors.Is(err, domain.ErrSearchFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrSearchFailure, err)
		}
		return nil, err
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	a.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// itemURL holds a recommendation URL; anything but a JSON string decodes as empty
type itemURL string

func (u *itemURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*u = ""
		return nil
	}
	*u = itemURL(s)
	return nil
}

type recommendationItem struct {
	Name       *string  `json:"name"`
	URL        itemURL  `json:"url"`
	WhyItFits  *string  `json:"why_it_fits"`
	Highlights []string `json:"highlights"`
	Watchouts  []string `json:"watchouts"`
	BestFor    *string  `json:"best_for"`
}

type recommendationsReply struct {
	Recommendations   []recommendationItem `json:"recommendations"`
	ComparisonInsight *string              `json:"comparison_insight"`
}

// RecommendProducts asks the model for recommendations based on the research
// and keeps only those whose URL matches a collected search hit. Dropped
// suggestions are reported through DiscardedCount.
func (a *ResearchAgent) RecommendProducts(
	ctx context.Context,
	topic, shopperSummary string,
	research domain.Research,
) (*domain.RecommendationResult, error) {
	known := evidenceURLs(research)

	var reply recommendationsReply
	prompt := buildRecommendationPrompt(topic, shopperSummary, FormatResearch(research), a.recommendationCount)
	system := recommendationSystemPrompt(a.recommendationCount)
	if err := generateJSON(ctx, a.llm, a.logger, "recommend", system, prompt, recommendationsSchema, &reply); err != nil {
		return nil, err
	}

	result := &domain.RecommendationResult{
		Recommendations:   []domain.ProductRecommendation{},
		ComparisonInsight: deref(reply.ComparisonInsight),
	}

	for _, item := range reply.Recommendations {
		url := strings.TrimSpace(string(item.URL))
		if _, ok := known[NormalizeURL(url)]; !ok || url == "" {
			result.DiscardedCount++
			metrics.RecommendationsDiscarded.Inc()
			a.logger.Debug("recommendation discarded, url not in evidence",
				zap.String("name", deref(item.Name)),
				zap.String("url", url),
			)
			continue
		}

		result.Recommendations = append(result.Recommendations, newRecommendation(item, url))
		metrics.RecommendationsAccepted.Inc()
	}

	a.logger.Info("recommendations validated",
		zap.String("topic", topic),
		zap.Int("accepted", len(result.Recommendations)),
		zap.Int("discarded", result.DiscardedCount),
	)
	return result, nil
}

func newRecommendation(item recommendationItem, url string) domain.ProductRecommendation {
	name := strings.TrimSpace(deref(item.Name))
	if name == "" {
		name = unnamedProduct
	}

	rec := domain.ProductRecommendation{
		Name:       name,
		URL:        url,
		WhyItFits:  deref(item.WhyItFits),
		Highlights: item.Highlights,
		Watchouts:  item.Watchouts,
		BestFor:    deref(item.BestFor),
	}
	if rec.Highlights == nil {
		rec.Highlights = []string{}
	}
	if rec.Watchouts == nil {
		rec.Watchouts = []string{}
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
