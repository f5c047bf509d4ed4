package usecase

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/buywithme/assistant/internal/domain"
)

// maxSnippetLength caps each evidence snippet, in characters
const maxSnippetLength = 400

const clarificationSystemPrompt = `You are a personable but efficient shopping assistant.
Your job is to understand a shopper's true needs before suggesting products.
Ask one targeted follow-up question at a time. Reference what you already know.
Avoid repeating previous questions.

Respond strictly as JSON with the following schema:
{
  "question": string | null,
  "should_continue": boolean,
  "updated_summary": string,
  "rationale": string
}
- "question" should be null when "should_continue" is false.
- "updated_summary" must be a concise bullet-style narrative of what you know.
- Do not include markdown code fences.`

const querySystemPrompt = `You are helping a shopping assistant research products.
The assistant already knows the shopper's needs and will now generate focused
web search queries that find current products for sale.

Respond with JSON: {"queries": [string, ...]}
- Provide between 2 and 4 distinct queries.
- Blend feature-specific and buyer-intent keywords.
- Avoid redundant variations.`

const recommendationSystemPromptTemplate = `You are a shopping expert turning live web research into product recommendations.
Use the shopper profile and search snippets to pick concrete products available now.

Requirements:
- Recommend %d products.
- For each, provide "name", "url", "why_it_fits" (<=120 words),
  "highlights" (3 bullet strings), "watchouts" (1-2 bullet strings)
  and "best_for" (short persona style description).
- Products must map to URLs present in the search results.
- When evidence is weak, flag the uncertainty rather than inventing details.

Respond strictly with JSON shaped as:
{
  "recommendations": [
    {
      "name": "...",
      "url": "...",
      "why_it_fits": "...",
      "highlights": ["...", ...],
      "watchouts": ["...", ...],
      "best_for": "..."
    }
  ],
  "comparison_insight": "succinct comparative insight"
}`

const rankingSystemPrompt = `You are a decision analyst helping Swiss shoppers.
Rank only products that were supplied, using Swiss availability and CHF pricing as critical constraints.
Return strictly valid JSON with a "ranked_products" array, including fields: product_id, score, rank,
rationale, price_chf, link, key_specs. Keep rationale under 280 characters.`

// buildClarificationPrompt describes the interview so far and the remaining question budget.
func buildClarificationPrompt(state *domain.ClarificationState, limit int) string {
	lines := []string{
		"Product request: " + state.Topic,
		"",
	}
	if len(state.Turns) > 0 {
		lines = append(lines, "Conversation so far:")
		for _, turn := range state.Turns {
			lines = append(lines, "- Q: "+turn.Question)
			lines = append(lines, "  A: "+turn.Answer)
		}
		lines = append(lines, "")
	}
	if state.Summary != "" {
		lines = append(lines, "Current summary: "+state.Summary)
	}

	remaining := limit - len(state.Turns)
	if remaining <= 1 {
		lines = append(lines, "This is the last question before the maximum question limit; only ask it if it is essential.")
	} else {
		lines = append(lines, fmt.Sprintf("You may ask at most %d more questions before the maximum question limit.", remaining))
	}
	lines = append(lines, "Decide whether another clarifying question is needed.")
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func buildQueryPrompt(topic, shopperSummary string) string {
	return fmt.Sprintf("Product request: %s\n\nShopper summary:\n%s", topic, shopperSummary)
}

func buildRecommendationPrompt(topic, shopperSummary, researchText string, count int) string {
	return fmt.Sprintf(
		"Product request: %s\n\nShopper summary:\n%s\n\nResearch findings:\n%s\n\nProvide %d top options.",
		topic, shopperSummary, researchText, count,
	)
}

func recommendationSystemPrompt(count int) string {
	return fmt.Sprintf(recommendationSystemPromptTemplate, count)
}

// FormatResearch renders evidence grouped by query, in query order then
// result order. Snippets are flattened to one line and truncated.
func FormatResearch(research domain.Research) string {
	var b strings.Builder
	for _, entry := range research {
		fmt.Fprintf(&b, "Query: %s\n", entry.Query)
		for _, result := range entry.Results {
			snippet := strings.TrimSpace(strings.ReplaceAll(result.Snippet, "\n", " "))
			snippet = truncateRunes(snippet, maxSnippetLength)
			fmt.Fprintf(&b, "- %s (%s) :: %s\n", result.Title, result.URL, snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// FormatProfile renders saved shopper preferences as "- key: value" lines, sorted by key.
func FormatProfile(values map[string]string) string {
	keys := slices.Sorted(maps.Keys(values))
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, values[key]))
	}
	return strings.Join(lines, "\n")
}

func buildRankingPrompt(requirements map[string]any, products []domain.Product) (string, error) {
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return "", fmt.Errorf("encode requirements: %w", err)
	}
	productsJSON, err := json.Marshal(products)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}
	return "User requirements (JSON):\n" + string(reqJSON) +
		"\nProducts (JSON):\n" + string(productsJSON) +
		"\nOnly return JSON.", nil
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
