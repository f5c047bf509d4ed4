package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/config"
	"github.com/buywithme/assistant/internal/delivery/cli"
	"github.com/buywithme/assistant/internal/infrastructure/cache"
	"github.com/buywithme/assistant/internal/infrastructure/openai"
	"github.com/buywithme/assistant/internal/infrastructure/tavily"
	"github.com/buywithme/assistant/internal/logger"
	"github.com/buywithme/assistant/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("assistant", pflag.ContinueOnError)
	product := flags.StringP("product", "p", "", "What you want to buy. If omitted you'll be prompted.")
	configFile := flags.String("config", "", "Path to a config file")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console or json)")
	flags.String("cache-type", "file", "Preference cache backend (file, memory or redis)")
	flags.Int("max-questions", 6, "Maximum clarifying questions")
	savePreferences := flags.Bool("save-preferences", false, "Remember the interview outcome without asking")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitFailure
	}
	if *product == "" && flags.NArg() > 0 {
		*product = strings.Join(flags.Args(), " ")
	}

	// Logging defaults to warn so log lines do not interleave with the conversation
	cfg, err := config.LoadWithOptions(config.Options{
		ConfigFile:    *configFile,
		Flags:         flags,
		RequireSearch: true,
		Defaults:      map[string]any{"log.level": "warn"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] %v\n", err)
		return cli.ExitFailure
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] %v\n", err)
		return cli.ExitFailure
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cache.New(ctx, cfg.Cache.Type, cfg.Cache.Dir, cfg.Cache.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] cache: %v\n", err)
		return cli.ExitFailure
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing cache failed", zap.Error(err))
		}
	}()

	clarificationLLM, err := openai.NewClient(openai.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.ClarificationModel(),
		RequestsPerMinute: cfg.RateLimit.LLM,
		Logger:            log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] %v\n", err)
		return cli.ExitFailure
	}

	researchLLM, err := openai.NewClient(openai.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.ResearchModel(),
		RequestsPerMinute: cfg.RateLimit.LLM,
		Logger:            log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] %v\n", err)
		return cli.ExitFailure
	}

	search, err := tavily.NewClient(tavily.Config{
		APIKey:            cfg.Tavily.APIKey,
		BaseURL:           cfg.Tavily.BaseURL,
		SearchDepth:       cfg.Tavily.SearchDepth,
		RequestsPerMinute: cfg.RateLimit.Search,
		Logger:            log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Configuration error] %v\n", err)
		return cli.ExitFailure
	}

	if cfg.Log.Level == "debug" {
		clarificationLLM.SetDebug(true)
		researchLLM.SetDebug(true)
		search.SetDebug(true)
	}

	session := cli.NewSession(cli.Config{
		In:  os.Stdin,
		Out: os.Stdout,
		Clarifier: usecase.NewClarificationEngine(clarificationLLM, usecase.ClarificationConfig{
			QuestionLimit: cfg.Assistant.MaxQuestions,
			Logger:        log,
		}),
		Researcher: usecase.NewResearchAgent(researchLLM, search, usecase.ResearchConfig{
			RecommendationCount: cfg.Assistant.RecommendationCount,
			PerQueryResults:     cfg.Assistant.PerQueryResults,
			SearchConcurrency:   cfg.Assistant.SearchConcurrency,
			Logger:              log,
		}),
		Preferences:     usecase.NewPreferenceService(store, usecase.PreferenceConfig{Logger: log}),
		SavePreferences: *savePreferences,
		Logger:          log,
	})

	log.Debug("assistant starting",
		zap.String("session_id", session.ID()),
		zap.String("clarification_model", cfg.ClarificationModel()),
		zap.String("research_model", cfg.ResearchModel()),
		zap.String("cache", cfg.Cache.Type),
	)
	return session.Run(ctx, *product)
}
