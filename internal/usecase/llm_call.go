package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/metrics"
)

// generateJSON sends one user message to the model and decodes the JSON reply into dst.
// The call is counted under operation whether it fails in transport or in decoding.
func generateJSON(
	ctx context.Context,
	llm domain.LLMClient,
	logger *zap.Logger,
	operation, systemPrompt, userPrompt string,
	schema *gojsonschema.Schema,
	dst any,
) (err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
		metrics.ModelCalls.WithLabelValues(operation, metrics.Outcome(err)).Inc()
	}()

	raw, err := llm.Generate(ctx, systemPrompt, []domain.Message{{Role: "user", Content: userPrompt}})
	if err != nil {
		if errors.Is(err, domain.ErrLLMFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrLLMFailure, err)
	}

	logger.Debug("model replied", zap.String("operation", operation), zap.Int("bytes", len(raw)))

	if err := decodeModelJSON(operation, raw, schema, dst); err != nil {
		logger.Warn("model reply could not be decoded", zap.String("operation", operation), zap.Error(err))
		return err
	}
	return nil
}
