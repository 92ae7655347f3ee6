package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/akash-mondal/feed-alpha/internal/cache"
	"github.com/akash-mondal/feed-alpha/internal/config"
	"github.com/akash-mondal/feed-alpha/internal/handler"
	"github.com/akash-mondal/feed-alpha/internal/llm"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/repository"
	"github.com/akash-mondal/feed-alpha/internal/rules"
	"github.com/akash-mondal/feed-alpha/internal/server"
	"github.com/akash-mondal/feed-alpha/internal/service"
	"github.com/akash-mondal/feed-alpha/internal/summarizer"
	"github.com/akash-mondal/feed-alpha/internal/telegram"
	"github.com/akash-mondal/feed-alpha/internal/telegram_bot"
	"github.com/akash-mondal/feed-alpha/internal/tracing"
	"github.com/akash-mondal/feed-alpha/internal/twitter"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Development)
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Database connection
	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	topicRepo := repository.NewTopicRepository(db, logger)
	profileRepo := repository.NewProfileRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	// Shared cache for in-flight markers and profile narratives
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		store = cache.NewRedisStore(client, cfg.Redis.Prefix)
		logger.Info("Using Redis cache")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Language model
	llmClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.Providers,
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, m, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM providers", zap.Error(err))
	}
	defer llmClient.Close()

	engine := summarizer.New(llmClient, m, logger, summarizer.WithWindow(cfg.Summaries.Window))
	evaluator := rules.New(llmClient, m, logger, rules.WithContextLimit(cfg.Summaries.ContextLimit))

	// Source adapters
	var posts service.PostFetcher
	if cfg.Twitter.APIKey != "" {
		posts = twitter.NewClient(cfg.Twitter, logger)
	} else {
		logger.Warn("twitter.api_key is empty, X topics are disabled")
	}

	var (
		messages  service.MessageFetcher
		directory handler.ChannelDirectory
		login     handler.CodeSubmitter
	)
	switch cfg.Telegram.Mode {
	case config.TelegramScraper:
		if cfg.Telegram.Scraper.URL == "" {
			logger.Warn("telegram.scraper.url is empty, Telegram topics are disabled")
			break
		}
		sc := telegram.NewScraperClient(cfg.Telegram.Scraper.URL, cfg.Telegram.Scraper.Timeout, logger)
		messages, directory = sc, sc
	case config.TelegramMTProto:
		mt, err := telegram.NewMTProtoClient(cfg.Telegram.MTProto, logger)
		if err != nil {
			logger.Fatal("Failed to initialize MTProto client", zap.Error(err))
		}
		go func() {
			if err := mt.Run(ctx); err != nil {
				logger.Error("MTProto client stopped", zap.Error(err))
			}
		}()
		messages, login = mt, mt
	case config.TelegramPreview:
		ps := telegram.NewPreviewScraper(cfg.Telegram.Preview, logger)
		defer ps.Close()
		messages = ps
	}

	// Services
	topicService := service.NewTopicService(topicRepo, posts, messages, engine, store, m, logger,
		service.WithRefreshTTL(cfg.Summaries.RefreshTTL))
	profileService := service.NewProfileService(profileRepo, topicRepo, evaluator, store, cfg.Summaries.ProfileCacheTTL, logger)
	feedbackService := service.NewFeedbackService(userRepo, logger)
	authService := service.NewAuthService(userRepo, cfg.Bot.Token, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.InitDataMaxAge, logger)

	// Telegram bot for on-demand briefs
	bot, err := telegram_bot.NewBot(cfg, profileService, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(server.Handlers{
		Auth:     handler.NewAuthHandler(authService, logger),
		Topics:   handler.NewTopicHandler(topicService, logger),
		Profiles: handler.NewProfileHandler(profileService, logger),
		Feedback: handler.NewFeedbackHandler(feedbackService, logger),
		Telegram: handler.NewTelegramHandler(directory, login, logger),
	}, authService, db, m, cfg.Server.AllowedOrigins, logger)

	if err := srv.Run(ctx, ":"+cfg.Server.Port); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
	logger.Info("Application stopped.")
}

func newLogger(development bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
