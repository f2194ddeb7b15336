package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-flow-radar/config"
	"crypto-flow-radar/internal/aggregator"
	"crypto-flow-radar/internal/ai/llm"
	"crypto-flow-radar/internal/anomaly"
	"crypto-flow-radar/internal/api"
	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/cache"
	"crypto-flow-radar/internal/database"
	"crypto-flow-radar/internal/engine"
	"crypto-flow-radar/internal/events"
	"crypto-flow-radar/internal/feed"
	"crypto-flow-radar/internal/liquidation"
	"crypto-flow-radar/internal/logging"
	"crypto-flow-radar/internal/marketcap"
	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/patterns"
	"crypto-flow-radar/internal/throttle"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Redis cache (optional)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing without it", "error", err)
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	// PostgreSQL sink (optional)
	var sink *database.Sink
	if cfg.DatabaseConfig.Enabled {
		db, dbErr := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		})
		if dbErr != nil {
			logger.Warn("Database unavailable, running without persistence", "error", dbErr)
		} else {
			defer db.Close()
			if err := db.RunMigrations(ctx); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
			sink = database.NewSink(database.NewRepository(db), nil, zlog)
			logger.Info("Persistence sink initialized")
		}
	}

	// Market-cap tier service
	var provider marketcap.Provider
	if cfg.MarketCapConfig.ProviderURL != "" {
		provider = marketcap.NewHTTPProvider(cfg.MarketCapConfig.ProviderURL)
	}
	tierConfig := marketcap.DefaultConfig()
	if cfg.MarketCapConfig.RefreshIntervalMinutes > 0 {
		tierConfig.RefreshInterval = time.Duration(cfg.MarketCapConfig.RefreshIntervalMinutes) * time.Minute
	}
	tiers := marketcap.NewService(tierConfig, provider, cacheService, zlog)
	if cacheService != nil {
		assets := make([]string, 0, len(cfg.FeedConfig.Symbols))
		for _, symbol := range cfg.FeedConfig.Symbols {
			assets = append(assets, models.AssetFromTicker(symbol))
		}
		tiers.WarmFromCache(ctx, assets)
	}
	go tiers.Run(ctx)

	// LLM signal reviewer (optional)
	var analyzer *llm.Analyzer
	if cfg.AIConfig.Enabled {
		clientConfig := llm.DefaultClientConfig()
		clientConfig.Provider = llm.Provider(cfg.AIConfig.LLMProvider)
		clientConfig.Model = cfg.AIConfig.LLMModel
		clientConfig.Timeout = cfg.AIConfig.Timeout
		if clientConfig.Provider == llm.ProviderOpenAI {
			clientConfig.APIKey = cfg.AIConfig.OpenAIAPIKey
		} else {
			clientConfig.APIKey = cfg.AIConfig.ClaudeAPIKey
		}
		analyzer = llm.NewAnalyzer(llm.NewClient(clientConfig), &llm.AnalyzerConfig{
			Enabled:     true,
			MinSeverity: models.Severity(cfg.AIConfig.MinSeverity),
		}, zlog)
		logger.Info("LLM signal reviewer enabled", "provider", cfg.AIConfig.LLMProvider)
	}

	// Detection pipeline
	baselineConfig := baseline.DefaultConfig()
	baselineConfig.Alpha = cfg.EngineConfig.BaselineAlpha
	baselines := baseline.NewTracker(baselineConfig)

	anomalyConfig := anomaly.DefaultConfig()
	anomalyConfig.MultiplierThreshold = cfg.EngineConfig.AnomalyThreshold
	detector := anomaly.NewDetector(anomalyConfig, baselines)

	gate := throttle.New(time.Duration(cfg.EngineConfig.SignalCooldownMinutes) * time.Minute)

	engineConfig := engine.DefaultConfig()
	engineConfig.ClassifyInterval = time.Duration(cfg.EngineConfig.ClassifyIntervalSeconds) * time.Second
	engineConfig.SweepInterval = time.Duration(cfg.EngineConfig.SweepIntervalSeconds) * time.Second
	engineConfig.MaxStoredAlerts = cfg.EngineConfig.MaxStoredAlerts
	engineConfig.MaxStoredSignals = cfg.EngineConfig.MaxStoredSignals

	eng := engine.New(engineConfig, engine.Deps{
		Aggregator: aggregator.New(),
		Baselines:  baselines,
		Detector:   detector,
		Book:       liquidation.NewBook(nil, nil, tiers),
		Classifier: patterns.NewClassifier(nil, gate),
		Throttle:   gate,
		Resolver:   tiers,
		Sink:       sink,
		Bus:        eventBus,
		Analyzer:   analyzer,
		Cache:      cacheService,
	}, logger)
	go eng.Run(ctx)

	// Exchange feeds
	if cfg.FeedConfig.SpotEnabled {
		spotFeed := feed.NewKlineFeed(cfg.FeedConfig.SpotWSURL, cfg.FeedConfig.Symbols,
			models.MarketSpot, eng.OnCandle, zlog)
		spotFeed.OnStatus(func(connected bool) { eventBus.PublishFeedStatus(connected, "spot_klines") })
		go spotFeed.Run(ctx)
	}
	if cfg.FeedConfig.FuturesEnabled {
		futuresFeed := feed.NewKlineFeed(cfg.FeedConfig.FuturesWSURL, cfg.FeedConfig.Symbols,
			models.MarketFutures, eng.OnCandle, zlog)
		futuresFeed.OnStatus(func(connected bool) { eventBus.PublishFeedStatus(connected, "futures_klines") })
		go futuresFeed.Run(ctx)

		liqFeed := feed.NewLiquidationFeed(cfg.FeedConfig.FuturesWSURL, eng.OnLiquidation, zlog)
		liqFeed.OnStatus(func(connected bool) { eventBus.PublishFeedStatus(connected, "liquidations") })
		go liqFeed.Run(ctx)
	}

	// HTTP API server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, eng, eventBus)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}

	log.Println("Shutdown complete")
}
