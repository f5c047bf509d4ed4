package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/logger"
)

// DefaultQuestionLimit caps the interview when no limit is configured
const DefaultQuestionLimit = 6

// ClarificationConfig holds configuration for the clarification engine
type ClarificationConfig struct {
	QuestionLimit int
	Logger        *zap.Logger
}

// ClarificationEngine asks the model for one follow-up question at a time
// until the shopper's needs are clear or the question budget is spent.
type ClarificationEngine struct {
	llm           domain.LLMClient
	questionLimit int
	logger        *zap.Logger
}

// NewClarificationEngine creates a clarification engine
func NewClarificationEngine(llm domain.LLMClient, config ClarificationConfig) *ClarificationEngine {
	limit := config.QuestionLimit
	if limit <= 0 {
		limit = DefaultQuestionLimit
	}

	return &ClarificationEngine{
		llm:           llm,
		questionLimit: limit,
		logger:        logger.OrNop(config.Logger),
	}
}

// QuestionLimit returns the maximum number of questions per interview
func (e *ClarificationEngine) QuestionLimit() int {
	return e.questionLimit
}

type clarificationReply struct {
	Question       *string `json:"question"`
	ShouldContinue *bool   `json:"should_continue"`
	UpdatedSummary *string `json:"updated_summary"`
}

// NextQuestion returns the next question to put to the shopper, or ok == false
// once the interview is complete. It updates state.Summary and state.Complete
// but never records a turn; the caller appends the answer.
func (e *ClarificationEngine) NextQuestion(ctx context.Context, state *domain.ClarificationState) (string, bool, error) {
	if state.Complete {
		return "", false, nil
	}
	if len(state.Turns) >= e.questionLimit {
		e.logger.Debug("question limit reached",
			zap.String("topic", state.Topic),
			zap.Int("limit", e.questionLimit),
		)
		state.Complete = true
		return "", false, nil
	}

	var reply clarificationReply
	prompt := buildClarificationPrompt(state, e.questionLimit)
	if err := generateJSON(ctx, e.llm, e.logger, "clarify", clarificationSystemPrompt, prompt, clarificationSchema, &reply); err != nil {
		return "", false, err
	}

	// a present summary replaces the old one, even when empty
	if reply.UpdatedSummary != nil {
		state.Summary = strings.TrimSpace(*reply.UpdatedSummary)
	}

	question := ""
	if reply.Question != nil {
		question = strings.TrimSpace(*reply.Question)
	}
	if reply.ShouldContinue == nil || !*reply.ShouldContinue || question == "" {
		e.logger.Debug("clarification complete",
			zap.String("topic", state.Topic),
			zap.Int("turns", len(state.Turns)),
		)
		state.Complete = true
		return "", false, nil
	}

	return question, true, nil
}
