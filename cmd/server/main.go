package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vimestats/internal/cache"
	"github.com/vimestats/internal/config"
	"github.com/vimestats/internal/directory"
	"github.com/vimestats/internal/handler"
	"github.com/vimestats/internal/kafka"
	"github.com/vimestats/internal/postgres"
	"github.com/vimestats/internal/redis"
	"github.com/vimestats/internal/service"
	"github.com/vimestats/internal/storage"
	"github.com/vimestats/internal/vimeworld"
	"github.com/vimestats/internal/websocket"
	"github.com/vimestats/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Visitor state backend
	var store storage.Store
	var readyChecks []func(context.Context) error
	switch cfg.Storage.Backend {
	case "redis":
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisStore, err := redis.NewStore(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		readyChecks = append(readyChecks, redisStore.Ping)
		logger.Info("connected to Redis")
	default:
		mem := storage.NewMemory()
		mem.MaxValueBytes = cfg.Storage.MaxValueBytes
		store = mem
		logger.Info("using in-memory visitor storage", "max_value_bytes", mem.MaxValueBytes)
	}

	playerCache := cache.New(store, cache.Options{
		TTL:       cfg.Cache.PlayerTTL,
		MaxRecent: cfg.Cache.MaxRecent,
	}, logger)

	// Lookup history
	var lookups service.LookupStore
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()

		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		lookups = postgresRepo
		readyChecks = append(readyChecks, postgresRepo.Ping)
		logger.Info("connected to PostgreSQL")
	}

	// Upstream clients
	users := vimeworld.NewUserClient(cfg.Upstream.UserAPIBase, cfg.Upstream.Timeout, logger)
	dir := vimeworld.NewDirectoryClient(cfg.Upstream.DirectoryAPIBase, cfg.Upstream.CORSProxy, cfg.Upstream.Timeout, logger)

	portal := service.NewPortal(users, dir, playerCache, lookups, service.Options{
		Directory: directory.Options{
			PageSize:       cfg.Directory.PageSize,
			PageWindow:     cfg.Directory.PageWindow,
			SearchDebounce: cfg.Directory.SearchDebounce,
			SkinBase:       cfg.Upstream.SkinBase,
		},
		SessionTTL: cfg.Server.SessionTTL,
	}, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Background cache sweep and rank stats refresh
	sweeper := worker.NewSweeper(portal, wsHub, cfg, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	readyChecks = append(readyChecks, func(context.Context) error {
		if !sweeper.IsRunning() {
			return errors.New("cache sweeper is not running")
		}
		return nil
	})

	// Kafka cache warm-up
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, portal, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without warm-up", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without warm-up", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	httpHandler := handler.NewHandler(portal, wsHub, handler.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SessionTTL:     cfg.Server.SessionTTL,
		Ready: func(ctx context.Context) error {
			for _, check := range readyChecks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := sweeper.Stop(); err != nil {
		logger.Error("failed to stop sweeper", "error", err)
	}

	logger.Info("server stopped")
}
