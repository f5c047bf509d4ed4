// Package cli runs the interactive shopping conversation over a pair of streams.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/logger"
	"github.com/buywithme/assistant/internal/usecase"
)

// Exit codes returned by Run
const (
	ExitOK      = 0
	ExitFailure = 1
)

const skippedAnswer = "User skipped this question."

var (
	stopAnswers = map[string]bool{"done": true, "that's enough": true, "no": true}
	skipAnswers = map[string]bool{"": true, "skip": true, "not sure": true, "pass": true}
)

// Clarifier runs one step of the clarification interview
type Clarifier interface {
	NextQuestion(ctx context.Context, state *domain.ClarificationState) (string, bool, error)
}

// Researcher drafts queries, collects evidence and recommends products
type Researcher interface {
	CraftSearchQueries(ctx context.Context, topic, shopperSummary string) ([]string, error)
	CollectResearch(ctx context.Context, queries []string, perQueryResults int) (domain.Research, error)
	RecommendProducts(ctx context.Context, topic, shopperSummary string, research domain.Research) (*domain.RecommendationResult, error)
}

// PreferenceStore remembers shopper answers between sessions
type PreferenceStore interface {
	Latest(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, values map[string]string) (*domain.Preferences, error)
}

// Config wires a session. Preferences may be nil.
type Config struct {
	In          io.Reader
	Out         io.Writer
	Clarifier   Clarifier
	Researcher  Researcher
	Preferences PreferenceStore
	// SavePreferences stores the interview outcome without asking
	SavePreferences bool
	Logger          *zap.Logger
}

// Session is one conversation with a shopper
type Session struct {
	id          string
	in          *bufio.Scanner
	out         io.Writer
	clarifier   Clarifier
	researcher  Researcher
	preferences PreferenceStore
	autoSave    bool
	logger      *zap.Logger
}

// NewSession creates a session reading answers from config.In
func NewSession(config Config) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		in:          bufio.NewScanner(config.In),
		out:         config.Out,
		clarifier:   config.Clarifier,
		researcher:  config.Researcher,
		preferences: config.Preferences,
		autoSave:    config.SavePreferences,
		logger:      logger.OrNop(config.Logger).With(zap.String("session_id", id)),
	}
}

// ID identifies the session in logs
func (s *Session) ID() string {
	return s.id
}

// Run holds the whole conversation and returns the process exit code.
// An empty product is asked for; an empty answer ends the session cleanly.
func (s *Session) Run(ctx context.Context, product string) int {
	s.banner("Shopping Assistant", "Hi! I'm your personal shopping sidekick. What are we shopping for today?")

	product = strings.TrimSpace(product)
	if product == "" {
		product, _ = s.ask()
	}
	if product == "" {
		s.println("I need a product or category to get started.")
		return ExitOK
	}
	s.logger.Info("session started", zap.String("product", product))

	s.showSavedPreferences(ctx)

	state, err := s.interview(ctx, product)
	if err != nil {
		s.println("Clarification failed: " + err.Error())
		s.logger.Error("interview failed", zap.Error(err))
		return ExitFailure
	}

	s.offerToSave(ctx, state)

	s.banner("Research", "Let me search the web for the best matches...")
	result, err := s.research(ctx, state)
	if err != nil {
		s.println("Search or recommendation failed: " + err.Error())
		s.logger.Error("research failed", zap.Error(err))
		return ExitFailure
	}

	if len(result.Recommendations) == 0 {
		s.println("I couldn't assemble confident recommendations this time.")
		return ExitFailure
	}
	if result.DiscardedCount > 0 {
		s.printf("%d suggestion(s) lacked verified product links and were dropped.\n", result.DiscardedCount)
	}

	s.render(result)
	s.logger.Info("session finished",
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Int("discarded", result.DiscardedCount),
	)
	return ExitOK
}

// interview asks clarifying questions until the engine or the shopper stops
func (s *Session) interview(ctx context.Context, topic string) (*domain.ClarificationState, error) {
	state := domain.NewClarificationState(topic)
	s.banner("Clarify Needs", "Great! I'll ask a few quick questions so I can tailor the search.")

	for {
		question, ok, err := s.clarifier.NextQuestion(ctx, state)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		s.println("? " + question)
		answer, more := s.ask()
		normalized := strings.ToLower(answer)

		if stopAnswers[normalized] {
			s.println("Understood. I'll work with what I have.")
			state.Complete = true
			break
		}
		if skipAnswers[normalized] {
			s.println("Skipping, I'll try a different angle.")
			state.AddTurn(question, skippedAnswer)
			if !more {
				// Input is exhausted, nothing else can be answered
				state.Complete = true
				break
			}
			continue
		}

		state.AddTurn(question, answer)
	}

	if state.Summary == "" {
		state.Summary = fallbackSummary(state)
	}
	s.banner("What I heard", state.Summary)
	return state, nil
}

// fallbackSummary lists the answers given, or just the topic when there are none
func fallbackSummary(state *domain.ClarificationState) string {
	if len(state.Turns) == 0 {
		return state.Topic
	}
	lines := make([]string, 0, len(state.Turns))
	for _, turn := range state.Turns {
		lines = append(lines, fmt.Sprintf("- %s: %s", turn.Question, turn.Answer))
	}
	return strings.Join(lines, "\n")
}

func (s *Session) research(ctx context.Context, state *domain.ClarificationState) (*domain.RecommendationResult, error) {
	s.println("Drafting smart search queries...")
	queries, err := s.researcher.CraftSearchQueries(ctx, state.Topic, state.Summary)
	if err != nil {
		return nil, err
	}

	s.println("Gathering fresh product listings...")
	research, err := s.researcher.CollectResearch(ctx, queries, 0)
	if err != nil {
		return nil, err
	}

	s.println("Comparing options for best value...")
	return s.researcher.RecommendProducts(ctx, state.Topic, state.Summary, research)
}

func (s *Session) showSavedPreferences(ctx context.Context) {
	if s.preferences == nil {
		return
	}
	saved, err := s.preferences.Latest(ctx)
	if err != nil {
		s.logger.Warn("could not load saved preferences", zap.Error(err))
		return
	}
	if len(saved) == 0 {
		return
	}
	s.banner("Saved preferences", usecase.FormatProfile(saved))
}

func (s *Session) offerToSave(ctx context.Context, state *domain.ClarificationState) {
	if s.preferences == nil {
		return
	}
	if !s.autoSave {
		s.println("Remember these answers for next time? [y/N]")
		answer, _ := s.ask()
		if answer = strings.ToLower(answer); answer != "y" && answer != "yes" {
			return
		}
	}

	values := map[string]string{
		"last_product":    state.Topic,
		"shopper_summary": state.Summary,
	}
	if _, err := s.preferences.Update(ctx, values); err != nil {
		s.println("Could not save your preferences: " + err.Error())
		s.logger.Warn("could not save preferences", zap.Error(err))
		return
	}
	s.println("Saved. I'll remember this next time.")
}

// ask reads one trimmed line; more is false once input is exhausted
func (s *Session) ask() (answer string, more bool) {
	fmt.Fprint(s.out, "You: ")
	if !s.in.Scan() {
		fmt.Fprintln(s.out)
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}
