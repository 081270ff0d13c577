// Package main is the entry point for the HR assistant API server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/bitrix"
	"github.com/hrdesk/hr-assistant/internal/cache"
	"github.com/hrdesk/hr-assistant/internal/config"
	"github.com/hrdesk/hr-assistant/internal/handler"
	"github.com/hrdesk/hr-assistant/internal/knowledge"
	"github.com/hrdesk/hr-assistant/internal/llm"
	"github.com/hrdesk/hr-assistant/internal/middleware"
	natsclient "github.com/hrdesk/hr-assistant/internal/nats"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.Build(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "hr-assistant"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting HR assistant", zap.String("llm_provider", cfg.LLMProvider))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "hr-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Database
	db, err := store.Open(store.Options{
		Driver:       cfg.DatabaseDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		ConnMaxLife:  cfg.DBConnMaxLife,
	})
	if err != nil {
		return err
	}
	defer store.Close(db)
	if err := store.AutoMigrate(db); err != nil {
		return err
	}

	users := store.NewUserStore(db)
	conversations := store.NewConversationStore(db)
	messages := store.NewMessageStore(db)
	articles := store.NewArticleStore(db)
	responses := store.NewResponseStore(db)
	analytics := store.NewAnalyticsStore(db)

	// Knowledge base
	table := knowledge.DefaultTable()
	if cfg.CategoriesFile != "" {
		table, err = knowledge.LoadTable(cfg.CategoriesFile)
		if err != nil {
			return err
		}
	}
	matcher := knowledge.NewMatcher(articles, table, log)
	knowledgeSvc := service.NewKnowledgeService(articles, responses, matcher, log)
	if cfg.SeedDefaults {
		n, err := knowledgeSvc.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("seeded knowledge base", zap.Int("articles", n))
		}
	}

	// Generative backend
	llmClient, err := llm.NewClient(llm.ClientConfig{
		Provider:        llm.Provider(cfg.LLMProvider),
		YandexAPIKey:    cfg.YandexAPIKey,
		YandexFolderID:  cfg.YandexFolderID,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn("LLM credentials missing, generative answers disabled", zap.String("provider", cfg.LLMProvider))
		llmClient = nil
	case err != nil:
		return err
	}
	forbidden := cfg.ForbiddenKeywords
	if len(forbidden) == 0 {
		forbidden = llm.DefaultForbiddenWords
	}
	generator := llm.NewGenerator(llmClient, llm.GeneratorConfig{
		Model:          cfg.LLMModel,
		Temperature:    cfg.LLMTemperature,
		MaxTokens:      cfg.LLMMaxTokens,
		Timeout:        cfg.LLMTimeout,
		ForbiddenWords: forbidden,
	}, log)
	log.Info("generative backend ready", zap.String("provider", generator.Provider()))

	// Chat platform
	var (
		platform  service.ChatPlatform
		directory handler.UserDirectory
	)
	bitrixClient, err := bitrix.NewClient(bitrix.Config{
		WebhookURL:  cfg.BitrixWebhookURL,
		BaseURL:     cfg.BitrixBaseURL,
		AccessToken: cfg.BitrixAccessToken,
		Timeout:     cfg.BitrixRelayTimeout,
	})
	switch {
	case errors.Is(err, bitrix.ErrNotConfigured):
		log.Warn("Bitrix24 not configured, answers will be stored but not relayed")
	case err != nil:
		return err
	default:
		platform = bitrixClient
		directory = bitrixClient
	}

	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(func(context.Context) error { return store.Ping(db) }),
	}

	// Event log
	var (
		events   service.EventPublisher = natsclient.NopPublisher{}
		replayer handler.EventReplayer
		watcher  handler.EventWatcher
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return err
		}
		events, replayer, watcher = streamManager, streamManager, streamManager
		checks["nats"] = natsClient
	}

	// Webhook deduplication
	var deduper handler.Deduper = cache.NewMemoryDeduper(cfg.DedupeTTL)
	if cfg.RedisAddr != "" {
		redisDeduper, err := cache.NewRedisDeduper(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DedupeTTL)
		if err != nil {
			return err
		}
		defer redisDeduper.Close()
		deduper = redisDeduper
		checks["redis"] = redisDeduper
	}

	// Services
	resolver := service.NewResolver(
		matcher,
		service.NewCannedMatcher(responses, log),
		service.NewContextBuilder(messages),
		generator,
		log,
	)
	messageSvc := service.NewMessageService(users, conversations, messages, resolver, platform, events, log)
	conversationSvc := service.NewConversationService(conversations, messages, generator, platform, events, cfg.BitrixResponsibleID, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(checks)
	webhookHandler := handler.NewWebhookHandler(messageSvc, deduper, directory, cfg.WebhookToken, log)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, replayer, log)
	messageHandler := handler.NewMessageHandler(conversationSvc, log)
	streamHandler := handler.NewStreamHandler(conversationSvc, watcher, log)
	analyticsHandler := handler.NewAnalyticsHandler(analytics, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.WebhookRateLimit(cfg.WebhookRateRequests, time.Minute)).
		Post("/webhook/bitrix", webhookHandler.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/categories", knowledgeHandler.Categories)
		r.Get("/search", knowledgeHandler.Search)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", knowledgeHandler.ListArticles)
			r.Get("/popular", knowledgeHandler.PopularArticles)
			r.Get("/{id}", knowledgeHandler.GetArticle)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Post("/", knowledgeHandler.CreateArticle)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Put("/{id}", knowledgeHandler.UpdateArticle)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Delete("/{id}", knowledgeHandler.DeleteArticle)
		})

		r.Route("/responses", func(r chi.Router) {
			r.Get("/", knowledgeHandler.ListResponses)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Post("/", knowledgeHandler.CreateResponse)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Put("/{id}", knowledgeHandler.UpdateResponse)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Delete("/{id}", knowledgeHandler.DeleteResponse)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Get("/messages", messageHandler.List)
				r.Get("/events", conversationHandler.Events)
				r.Get("/stream", streamHandler.Stream)
				r.With(middleware.RequireScope(middleware.ScopeAdmin)).Post("/close", conversationHandler.Close)
				r.With(middleware.RequireScope(middleware.ScopeAdmin)).Post("/escalate", conversationHandler.Escalate)
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", analyticsHandler.Overview)
			r.Get("/daily", analyticsHandler.Daily)
			r.Get("/history", analyticsHandler.History)
			r.With(middleware.RequireScope(middleware.ScopeAdmin)).Post("/rollup", analyticsHandler.Rollup)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
