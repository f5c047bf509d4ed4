package cli

import (
	"fmt"
	"strings"

	"github.com/buywithme/assistant/internal/domain"
)

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// banner prints a titled block separated from what came before
func (s *Session) banner(title, body string) {
	fmt.Fprintf(s.out, "\n== %s ==\n%s\n", title, body)
}

func (s *Session) render(result *domain.RecommendationResult) {
	s.banner("Recommendations", "Here are the standout options I found.")

	for i, rec := range result.Recommendations {
		fmt.Fprint(s.out, formatRecommendation(i+1, rec))
	}

	if result.ComparisonInsight != "" {
		fmt.Fprintf(s.out, "\nQuick comparison tip: %s\n", result.ComparisonInsight)
	}
}

func formatRecommendation(position int, rec domain.ProductRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n-- Option %d --\n", position)
	fmt.Fprintf(&b, "%s\n%s\n", rec.Name, rec.URL)
	if rec.WhyItFits != "" {
		fmt.Fprintf(&b, "\n%s\n", rec.WhyItFits)
	}

	writeList(&b, "Highlights", rec.Highlights)
	writeList(&b, "Watch-outs", rec.Watchouts)

	if rec.BestFor != "" {
		fmt.Fprintf(&b, "\nBest for: %s\n", rec.BestFor)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	var kept []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range kept {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
