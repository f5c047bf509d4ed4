package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buywithme/assistant/internal/domain"
)

// scriptedClarifier asks its questions in order, then stops
type scriptedClarifier struct {
	questions []string
	summary   string
	err       error
	calls     int
}

func (c *scriptedClarifier) NextQuestion(ctx context.Context, state *domain.ClarificationState) (string, bool, error) {
	c.calls++
	if c.err != nil {
		return "", false, c.err
	}
	if state.Complete || len(state.Turns) >= len(c.questions) {
		state.Complete = true
		if c.summary != "" {
			state.Summary = c.summary
		}
		return "", false, nil
	}
	return c.questions[len(state.Turns)], true, nil
}

type stubResearcher struct {
	result       *domain.RecommendationResult
	queriesErr   error
	collectErr   error
	recommendErr error
	gotSummary   string
}

func (r *stubResearcher) CraftSearchQueries(ctx context.Context, topic, shopperSummary string) ([]string, error) {
	r.gotSummary = shopperSummary
	if r.queriesErr != nil {
		return nil, r.queriesErr
	}
	return []string{topic}, nil
}

func (r *stubResearcher) CollectResearch(ctx context.Context, queries []string, perQueryResults int) (domain.Research, error) {
	if r.collectErr != nil {
		return nil, r.collectErr
	}
	return domain.Research{{Query: queries[0], Results: []domain.SearchResult{}}}, nil
}

func (r *stubResearcher) RecommendProducts(ctx context.Context, topic, shopperSummary string, research domain.Research) (*domain.RecommendationResult, error) {
	if r.recommendErr != nil {
		return nil, r.recommendErr
	}
	return r.result, nil
}

type memoryPreferences struct {
	values map[string]string
	saved  map[string]string
	err    error
}

func (p *memoryPreferences) Latest(ctx context.Context) (map[string]string, error) {
	return p.values, p.err
}

func (p *memoryPreferences) Update(ctx context.Context, values map[string]string) (*domain.Preferences, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.saved = values
	return &domain.Preferences{Values: values}, nil
}

func groundedResult() *domain.RecommendationResult {
	return &domain.RecommendationResult{
		Recommendations: []domain.ProductRecommendation{{
			Name:       "Ground Control 155",
			URL:        "https://shop.example.com/ground-control",
			WhyItFits:  "Quiet and compact.",
			Highlights: []string{"PID", "", "Fast heat-up"},
			Watchouts:  []string{"Pricey"},
			BestFor:    "Home baristas",
		}},
		ComparisonInsight: "Ground Control is the quiet pick.",
		DiscardedCount:    2,
	}
}

type harness struct {
	clarifier  *scriptedClarifier
	researcher *stubResearcher
	prefs      *memoryPreferences
	out        *bytes.Buffer
}

func runSession(t *testing.T, h *harness, input, product string, autoSave bool) int {
	t.Helper()
	if h.out == nil {
		h.out = &bytes.Buffer{}
	}
	cfg := Config{
		In:              strings.NewReader(input),
		Out:             h.out,
		Clarifier:       h.clarifier,
		Researcher:      h.researcher,
		SavePreferences: autoSave,
		Logger:          zaptest.NewLogger(t),
	}
	if h.prefs != nil {
		cfg.Preferences = h.prefs
	}
	session := NewSession(cfg)
	require.Len(t, session.ID(), 36)
	return session.Run(context.Background(), product)
}

func TestRun_FullConversation(t *testing.T) {
	h := &harness{
		clarifier:  &scriptedClarifier{questions: []string{"Budget?", "Milk drinks?"}},
		researcher: &stubResearcher{result: groundedResult()},
	}

	code := runSession(t, h, "around 500 CHF\nskip\n", "espresso machine", false)

	assert.Equal(t, ExitOK, code)
	out := h.out.String()
	assert.Contains(t, out, "? Budget?")
	assert.Contains(t, out, "? Milk drinks?")
	assert.Contains(t, out, "- Budget?: around 500 CHF\n- Milk drinks?: User skipped this question.")
	assert.Equal(t, "- Budget?: around 500 CHF\n- Milk drinks?: User skipped this question.", h.researcher.gotSummary)
	assert.Contains(t, out, "2 suggestion(s) lacked verified product links and were dropped.")
	assert.Contains(t, out, "-- Option 1 --\nGround Control 155\nhttps://shop.example.com/ground-control\n")
	assert.Contains(t, out, "Highlights:\n- PID\n- Fast heat-up\n")
	assert.Contains(t, out, "Watch-outs:\n- Pricey\n")
	assert.Contains(t, out, "Best for: Home baristas")
	assert.Contains(t, out, "Quick comparison tip: Ground Control is the quiet pick.")
}

func TestRun_AsksForProduct(t *testing.T) {
	h := &harness{
		clarifier:  &scriptedClarifier{summary: "- wants a kettle"},
		researcher: &stubResearcher{result: groundedResult()},
	}

	code := runSession(t, h, "kettle\n", "", false)

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "- wants a kettle", h.researcher.gotSummary)
}

func TestRun_EmptyProductExitsCleanly(t *testing.T) {
	h := &harness{clarifier: &scriptedClarifier{}, researcher: &stubResearcher{}}

	code := runSession(t, h, "\n", "", false)

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, h.out.String(), "I need a product or category to get started.")
	assert.Equal(t, 0, h.clarifier.calls)
}

func TestRun_StopWords(t *testing.T) {
	for _, word := range []string{"done", "That's enough", "NO"} {
		t.Run(word, func(t *testing.T) {
			h := &harness{
				clarifier:  &scriptedClarifier{questions: []string{"Budget?", "Colour?", "Size?"}},
				researcher: &stubResearcher{result: groundedResult()},
			}

			code := runSession(t, h, "500\n"+word+"\nnever read\n", "kettle", false)

			assert.Equal(t, ExitOK, code)
			assert.Contains(t, h.out.String(), "Understood. I'll work with what I have.")
			assert.NotContains(t, h.out.String(), "? Size?")
			assert.Equal(t, "- Budget?: 500", h.researcher.gotSummary)
		})
	}
}

func TestRun_SkipWords(t *testing.T) {
	h := &harness{
		clarifier:  &scriptedClarifier{questions: []string{"A?", "B?", "C?", "D?"}},
		researcher: &stubResearcher{result: groundedResult()},
	}

	code := runSession(t, h, "\nnot sure\nPASS\nskip\n", "kettle", false)

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, strings.Count(h.researcher.gotSummary, skippedAnswer), 4)
}

func TestRun_TopicIsFallbackSummary(t *testing.T) {
	h := &harness{
		clarifier:  &scriptedClarifier{},
		researcher: &stubResearcher{result: groundedResult()},
	}

	runSession(t, h, "", "kettle", false)

	assert.Equal(t, "kettle", h.researcher.gotSummary)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name       string
		clarifier  *scriptedClarifier
		researcher *stubResearcher
		wantOutput string
	}{
		{
			name:       "clarification fails",
			clarifier:  &scriptedClarifier{err: domain.ErrLLMFailure},
			researcher: &stubResearcher{},
			wantOutput: "Clarification failed",
		},
		{
			name:       "no queries",
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{queriesErr: domain.ErrNoSearchQueries},
			wantOutput: "Search or recommendation failed",
		},
		{
			name:       "search fails",
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{collectErr: domain.ErrSearchFailure},
			wantOutput: "Search or recommendation failed",
		},
		{
			name:       "malformed recommendations",
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{recommendErr: &domain.MalformedResponseError{Operation: "recommend", Raw: "oops", Err: errors.New("bad")}},
			wantOutput: "oops",
		},
		{
			name:       "nothing grounded",
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{result: &domain.RecommendationResult{Recommendations: []domain.ProductRecommendation{}, DiscardedCount: 3}},
			wantOutput: "I couldn't assemble confident recommendations this time.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{clarifier: tt.clarifier, researcher: tt.researcher}

			code := runSession(t, h, "", "kettle", false)

			assert.Equal(t, ExitFailure, code)
			assert.Contains(t, h.out.String(), tt.wantOutput)
		})
	}
}

func TestRun_Preferences(t *testing.T) {
	t.Run("shows saved preferences and saves on yes", func(t *testing.T) {
		h := &harness{
			clarifier:  &scriptedClarifier{summary: "- quiet"},
			researcher: &stubResearcher{result: groundedResult()},
			prefs:      &memoryPreferences{values: map[string]string{"budget": "500 CHF"}},
		}

		code := runSession(t, h, "y\n", "espresso machine", false)

		assert.Equal(t, ExitOK, code)
		assert.Contains(t, h.out.String(), "== Saved preferences ==\n- budget: 500 CHF")
		assert.Equal(t, map[string]string{"last_product": "espresso machine", "shopper_summary": "- quiet"}, h.prefs.saved)
	})

	t.Run("declining keeps nothing", func(t *testing.T) {
		h := &harness{
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{result: groundedResult()},
			prefs:      &memoryPreferences{},
		}

		runSession(t, h, "n\n", "kettle", false)

		assert.Nil(t, h.prefs.saved)
		assert.NotContains(t, h.out.String(), "Saved preferences")
	})

	t.Run("auto save does not ask", func(t *testing.T) {
		h := &harness{
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{result: groundedResult()},
			prefs:      &memoryPreferences{},
		}

		runSession(t, h, "", "kettle", true)

		assert.NotContains(t, h.out.String(), "Remember these answers")
		assert.Equal(t, "kettle", h.prefs.saved["last_product"])
	})

	t.Run("store errors do not end the session", func(t *testing.T) {
		h := &harness{
			clarifier:  &scriptedClarifier{},
			researcher: &stubResearcher{result: groundedResult()},
			prefs:      &memoryPreferences{err: errors.New("disk full")},
		}

		code := runSession(t, h, "", "kettle", true)

		assert.Equal(t, ExitOK, code)
		assert.Contains(t, h.out.String(), "Could not save your preferences")
	})
}

func TestFormatRecommendation_OmitsEmptySections(t *testing.T) {
	text := formatRecommendation(2, domain.ProductRecommendation{
		Name:       "Plain",
		URL:        "https://a.test",
		Highlights: []string{},
		Watchouts:  []string{" "},
	})

	assert.Equal(t, "\n-- Option 2 --\nPlain\nhttps://a.test\n", text)
}
