package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/config"
	httpDelivery "github.com/buywithme/assistant/internal/delivery/http"
	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/cache"
	"github.com/buywithme/assistant/internal/infrastructure/digitec"
	"github.com/buywithme/assistant/internal/infrastructure/openai"
	"github.com/buywithme/assistant/internal/infrastructure/tavily"
	"github.com/buywithme/assistant/internal/logger"
	"github.com/buywithme/assistant/internal/usecase"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configFile := flags.String("config", "", "Path to a config file")
	flags.String("port", "8080", "Port to listen on")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (console or json)")
	flags.String("cache-type", "file", "Catalogue cache backend (file, memory or redis)")
	_ = flags.Parse(os.Args[1:])

	// Web search is optional here; research endpoints answer 503 without it
	cfg, err := config.LoadWithOptions(config.Options{ConfigFile: *configFile, Flags: flags})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := serve(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting BuyWithMe assistant API",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
	)

	// Initialize infrastructure dependencies
	store, closeStore, err := cache.New(ctx, cfg.Cache.Type, cfg.Cache.Dir, cfg.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing cache failed", zap.Error(err))
		}
	}()

	debug := cfg.Server.Environment == "development"

	clarificationLLM, err := openai.NewClient(openai.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.ClarificationModel(),
		RequestsPerMinute: cfg.RateLimit.LLM,
		Logger:            log,
	})
	if err != nil {
		return err
	}
	researchLLM, err := openai.NewClient(openai.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.ResearchModel(),
		RequestsPerMinute: cfg.RateLimit.LLM,
		Logger:            log,
	})
	if err != nil {
		return err
	}
	clarificationLLM.SetDebug(debug)
	researchLLM.SetDebug(debug)

	retailer := digitec.NewClient(digitec.Config{
		ListingURL:        cfg.Assistant.RetailerURL,
		RequestsPerMinute: cfg.RateLimit.Search,
		Logger:            log,
	})
	retailer.SetDebug(debug)

	handlerConfig := httpDelivery.HandlerConfig{
		Clarifier: usecase.NewClarificationEngine(clarificationLLM, usecase.ClarificationConfig{
			QuestionLimit: cfg.Assistant.MaxQuestions,
			Logger:        log,
		}),
		Catalog: usecase.NewCatalogService(store, retailer, usecase.CatalogConfig{
			MaxProducts: cfg.Assistant.MaxProducts,
			Logger:      log,
		}),
		Ranker: usecase.NewRankingService(researchLLM, usecase.RankingConfig{Logger: log}),
		Logger: log,
	}

	search, err := tavily.NewClient(tavily.Config{
		APIKey:            cfg.Tavily.APIKey,
		BaseURL:           cfg.Tavily.BaseURL,
		SearchDepth:       cfg.Tavily.SearchDepth,
		RequestsPerMinute: cfg.RateLimit.Search,
		Logger:            log,
	})
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		log.Warn("TAVILY_API_KEY not configured, research endpoints are disabled")
	case err != nil:
		return err
	default:
		search.SetDebug(debug)
		handlerConfig.Researcher = usecase.NewResearchAgent(researchLLM, search, usecase.ResearchConfig{
			RecommendationCount: cfg.Assistant.RecommendationCount,
			PerQueryResults:     cfg.Assistant.PerQueryResults,
			SearchConcurrency:   cfg.Assistant.SearchConcurrency,
			Logger:              log,
		})
	}

	router := httpDelivery.SetupRouter(cfg, httpDelivery.NewHandler(handlerConfig), log)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
