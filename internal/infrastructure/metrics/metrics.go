package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/buywithme/assistant/internal/domain"
)

var (
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_model_calls_total",
			Help: "Total number of language model calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SearchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_search_calls_total",
			Help: "Total number of web search calls by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_recommendations_accepted_total",
			Help: "Recommendations whose URL was found in the collected evidence",
		},
	)

	RecommendationsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_recommendations_discarded_total",
			Help: "Recommendations dropped because their URL was not in the collected evidence",
		},
	)

	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_catalog_lookups_total",
			Help: "Retailer catalogue lookups by cache result",
		},
		[]string{"result"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_upstream_duration_seconds",
			Help:    "Duration of collaborator calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"collaborator"},
	)
)

// Outcome labels
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
)

// Outcome maps an error onto an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrMalformedModelResponse):
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}
