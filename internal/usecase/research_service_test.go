package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/metrics"
)

func newTestAgent(t *testing.T, llm domain.LLMClient, search domain.SearchClient, config ResearchConfig) *ResearchAgent {
	config.Logger = zaptest.NewLogger(t)
	return NewResearchAgent(llm, search, config)
}

func groundControlEvidence() domain.Research {
	return domain.Research{
		{Query: "espresso", Results: []domain.SearchResult{
			{Title: "Ground Control 155", URL: "https://shop.example.com/ground-control", Snippet: "Product page"},
		}},
	}
}

func TestNewResearchAgent(t *testing.T) {
	agent := NewResearchAgent(NewStubLLM(), NewStubSearch(), ResearchConfig{})

	assert.Equal(t, DefaultRecommendationCount, agent.recommendationCount)
	assert.Equal(t, DefaultPerQueryResults, agent.perQueryResults)
	assert.Equal(t, 1, agent.searchConcurrency)
}

func TestCraftSearchQueries(t *testing.T) {
	t.Run("returns cleaned queries in order", func(t *testing.T) {
		llm := NewStubLLM("```json\n{\"queries\": [\" quiet espresso machine \", \"\", \"1. espresso machine under 500 CHF\", \"quiet espresso machine\"]}\n```")
		agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

		queries, err := agent.CraftSearchQueries(context.Background(), "espresso machine", "- quiet\n- under 500 CHF")

		require.NoError(t, err)
		assert.Equal(t, []string{"quiet espresso machine", "espresso machine under 500 CHF", "quiet espresso machine"}, queries)
		assert.Contains(t, llm.LastPrompt(), "Product request: espresso machine")
		assert.Contains(t, llm.LastPrompt(), "Shopper summary:\n- quiet\n- under 500 CHF")
	})

	tests := []struct {
		name  string
		reply string
	}{
		{"empty array", `{"queries": []}`},
		{"missing key", `{}`},
		{"only blanks", `{"queries": ["", "   "]}`},
		{"null entries", `{"queries": [null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newTestAgent(t, NewStubLLM(tt.reply), NewStubSearch(), ResearchConfig{})

			queries, err := agent.CraftSearchQueries(context.Background(), "espresso machine", "")

			assert.Nil(t, queries)
			assert.ErrorIs(t, err, domain.ErrNoSearchQueries)
		})
	}

	t.Run("malformed reply", func(t *testing.T) {
		agent := newTestAgent(t, NewStubLLM("not json"), NewStubSearch(), ResearchConfig{})

		_, err := agent.CraftSearchQueries(context.Background(), "espresso machine", "")

		assert.ErrorIs(t, err, domain.ErrMalformedModelResponse)
	})
}

func TestCollectResearch_EmptyHits(t *testing.T) {
	search := NewStubSearch()
	agent := newTestAgent(t, NewStubLLM(), search, ResearchConfig{})

	research, err := agent.CollectResearch(context.Background(), []string{"espresso"}, 3)

	require.NoError(t, err)
	require.Len(t, research, 1)
	assert.Equal(t, "espresso", research[0].Query)
	assert.NotNil(t, research[0].Results)
	assert.Empty(t, research[0].Results)

	calls := search.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, searchCall{Query: "espresso", MaxResults: 3}, calls[0])
}

func TestCollectResearch_DefaultPerQueryResults(t *testing.T) {
	search := NewStubSearch()
	agent := newTestAgent(t, NewStubLLM(), search, ResearchConfig{PerQueryResults: 7})

	_, err := agent.CollectResearch(context.Background(), []string{"a"}, 0)

	require.NoError(t, err)
	assert.Equal(t, 7, search.Calls()[0].MaxResults)
}

func TestCollectResearch_PreservesOrder(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		search := NewStubSearch()
		search.results["first"] = []domain.SearchResult{{URL: "https://a.test/1"}, {URL: "https://a.test/2"}}
		search.results["second"] = []domain.SearchResult{{URL: "https://a.test/1"}}
		search.results["third"] = []domain.SearchResult{{URL: "https://c.test/1"}}
		// Make the first query finish last when run in parallel
		search.delay["first"] = 30 * time.Millisecond

		agent := newTestAgent(t, NewStubLLM(), search, ResearchConfig{SearchConcurrency: concurrency})

		research, err := agent.CollectResearch(context.Background(), []string{"first", "second", "third", "empty"}, 5)

		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third", "empty"}, research.Queries())
		results, _ := research.Lookup("first")
		assert.Equal(t, []domain.SearchResult{{URL: "https://a.test/1"}, {URL: "https://a.test/2"}}, results)
		// No cross-query dedup
		assert.Equal(t, 4, research.TotalResults())
		assert.Len(t, search.Calls(), 4)
	}
}

func TestCollectResearch_DuplicateQueries(t *testing.T) {
	search := NewStubSearch()
	agent := newTestAgent(t, NewStubLLM(), search, ResearchConfig{})

	research, err := agent.CollectResearch(context.Background(), []string{"espresso", "espresso"}, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"espresso", "espresso"}, research.Queries())
}

func TestCollectResearch_NoQueries(t *testing.T) {
	agent := newTestAgent(t, NewStubLLM(), NewStubSearch(), ResearchConfig{})

	research, err := agent.CollectResearch(context.Background(), nil, 3)

	require.NoError(t, err)
	assert.NotNil(t, research)
	assert.Empty(t, research)
}

func TestCollectResearch_FailureFailsCall(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		search := NewStubSearch()
		cause := errors.New("timeout")
		search.errs["second"] = cause
		agent := newTestAgent(t, NewStubLLM(), search, ResearchConfig{SearchConcurrency: concurrency})

		before := testutil.ToFloat64(metrics.SearchCalls.WithLabelValues(metrics.OutcomeError))
		research, err := agent.CollectResearch(context.Background(), []string{"first", "second", "third"}, 3)

		assert.Nil(t, research)
		assert.ErrorIs(t, err, domain.ErrSearchFailure)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), `"second"`)
		assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SearchCalls.WithLabelValues(metrics.OutcomeError))-before, 1.0)
	}
}

func TestRecommendProducts_GroundingFilter(t *testing.T) {
	llm := NewStubLLM(`{
		"recommendations": [
			{"name": "Ground Control 155", "url": "https://shop.example.com/ground-control", "why_it_fits": "Quiet", "highlights": ["a", "b", "c"], "watchouts": ["pricey"], "best_for": "Home baristas"},
			{"name": "Fake Machine", "url": "https://totallyfake.invalid/product", "why_it_fits": "Made up"}
		],
		"comparison_insight": "Ground Control is the quiet pick."
	}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	acceptedBefore := testutil.ToFloat64(metrics.RecommendationsAccepted)
	discardedBefore := testutil.ToFloat64(metrics.RecommendationsDiscarded)

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "Ground Control 155", rec.Name)
	assert.Equal(t, "https://shop.example.com/ground-control", rec.URL)
	assert.Equal(t, "Quiet", rec.WhyItFits)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Highlights)
	assert.Equal(t, []string{"pricey"}, rec.Watchouts)
	assert.Equal(t, "Home baristas", rec.BestFor)
	assert.Equal(t, 1, result.DiscardedCount)
	assert.Equal(t, "Ground Control is the quiet pick.", result.ComparisonInsight)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecommendationsAccepted)-acceptedBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecommendationsDiscarded)-discardedBefore)
}

func TestRecommendProducts_QueryStringNormalization(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": [
		{"name": "Ground Control 155", "url": "https://shop.example.com/ground-control?ref=ads"},
		{"name": "Other", "url": "not a url at all"}
	]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Ground Control 155", result.Recommendations[0].Name)
	assert.Equal(t, "https://shop.example.com/ground-control?ref=ads", result.Recommendations[0].URL)
	assert.Equal(t, 1, result.DiscardedCount)
	assert.Equal(t, "", result.ComparisonInsight)
}

func TestRecommendProducts_NoEvidenceDiscardsAll(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": [
		{"name": "A", "url": "https://shop.example.com/a"},
		{"name": "B", "url": "https://shop.example.com/b"},
		{"name": "C", "url": "https://shop.example.com/c"}
	]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})
	research := domain.Research{
		{Query: "espresso", Results: []domain.SearchResult{}},
		{Query: "grinder", Results: []domain.SearchResult{}},
	}

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", research)

	require.NoError(t, err)
	assert.NotNil(t, result.Recommendations)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 3, result.DiscardedCount)
}

func TestRecommendProducts_MissingURLIsDiscarded(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": [{"name": "No link"}, {"name": "Empty", "url": ""}, {"name": "Null", "url": null}]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 3, result.DiscardedCount)
}

func TestRecommendProducts_NonStringURLIsDiscarded(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": [
		{"name": "Ground Control 155", "url": "https://shop.example.com/ground-control"},
		{"name": "Numeric", "url": 42},
		{"name": "Object", "url": {"href": "https://shop.example.com/ground-control"}}
	]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Ground Control 155", result.Recommendations[0].Name)
	assert.Equal(t, 2, result.DiscardedCount)
}

func TestRecommendProducts_MissingRecommendationsKey(t *testing.T) {
	agent := newTestAgent(t, NewStubLLM(`{"comparison_insight": "Nothing stood out."}`), NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 0, result.DiscardedCount)
	assert.Equal(t, "Nothing stood out.", result.ComparisonInsight)
}

func TestRecommendProducts_Defaults(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": [{"url": "https://shop.example.com/ground-control/"}]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "Unnamed product", rec.Name)
	assert.NotNil(t, rec.Highlights)
	assert.NotNil(t, rec.Watchouts)
	assert.Empty(t, rec.Highlights)
}

func TestRecommendProducts_KeepsModelOrder(t *testing.T) {
	research := domain.Research{
		{Query: "q", Results: []domain.SearchResult{
			{URL: "https://a.test/1"}, {URL: "https://a.test/2"}, {URL: "https://a.test/3"},
		}},
	}
	llm := NewStubLLM(`{"recommendations": [
		{"name": "Three", "url": "https://a.test/3"},
		{"name": "One", "url": "https://a.test/1"},
		{"name": "Two", "url": "https://a.test/2"}
	]}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{})

	result, err := agent.RecommendProducts(context.Background(), "t", "", research)

	require.NoError(t, err)
	names := make([]string, 0, len(result.Recommendations))
	for _, r := range result.Recommendations {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Three", "One", "Two"}, names)
}

func TestRecommendProducts_Prompt(t *testing.T) {
	llm := NewStubLLM(`{"recommendations": []}`)
	agent := newTestAgent(t, llm, NewStubSearch(), ResearchConfig{RecommendationCount: 4})

	_, err := agent.RecommendProducts(context.Background(), "espresso machine", "- quiet", groundControlEvidence())

	require.NoError(t, err)
	prompt := llm.LastPrompt()
	assert.Contains(t, prompt, "Product request: espresso machine")
	assert.Contains(t, prompt, "Query: espresso\n- Ground Control 155 (https://shop.example.com/ground-control) :: Product page")
	assert.Contains(t, prompt, "Provide 4 top options.")
	assert.Contains(t, llm.LastSystem(), "Recommend 4 products.")
}

func TestRecommendProducts_MalformedReply(t *testing.T) {
	raw := `{"recommendations": [`
	agent := newTestAgent(t, NewStubLLM(raw), NewStubSearch(), ResearchConfig{})

	before := testutil.ToFloat64(metrics.ModelCalls.WithLabelValues("recommend", metrics.OutcomeMalformed))
	result, err := agent.RecommendProducts(context.Background(), "espresso machine", "", groundControlEvidence())

	assert.Nil(t, result)
	var malformed *domain.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, raw, malformed.Raw)
	assert.True(t, strings.Contains(err.Error(), raw))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelCalls.WithLabelValues("recommend", metrics.OutcomeMalformed))-before)
}
