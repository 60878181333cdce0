package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"studyroom-relay/internal/config"
	"studyroom-relay/internal/database"
	"studyroom-relay/internal/handlers"
	"studyroom-relay/internal/logger"
	"studyroom-relay/internal/metrics"
	"studyroom-relay/internal/middleware"
	"studyroom-relay/internal/room"
	"studyroom-relay/internal/router"
	"studyroom-relay/internal/storage"
	"studyroom-relay/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting study room relay", "env", cfg.Env, "storage", cfg.StorageBackend)

	// ──── Step 2: Open Durable Storage ────
	var provider storage.Provider
	switch cfg.StorageBackend {
	case config.StorageRedis:
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", "err", err)
		}
		defer client.Close()
		provider = storage.NewRedisProvider(client)
		log.Info("Redis connected")

	case config.StoragePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("PostgreSQL connection failed", "err", err)
		}
		defer pool.Close()
		log.Info("PostgreSQL connected")

		if err := database.RunMigrations(pool, log); err != nil {
			log.Fatal("Database migration failed", "err", err)
		}
		log.Info("Database migrations applied")
		provider = storage.NewPostgresProvider(pool)

	default:
		provider = storage.NewMemoryProvider()
		log.Warn("Using in-memory storage; bans and sessions will not survive a restart")
	}

	// ──── Step 3: Metrics ────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ──── Step 4: Room Registry ────
	registry := room.NewRegistry(provider, room.Options{
		IdleTimeout:    cfg.RoomIdleTimeout,
		InboxSize:      cfg.RoomInboxSize,
		StorageTimeout: cfg.StorageTimeout,
		Logger:         log,
		Metrics:        m,
	})

	// ──── Step 5: Start HTTP Server ────
	upgradeLimiter := middleware.NewRateLimiter(cfg.WSRateLimit, time.Minute)
	defer upgradeLimiter.Stop()

	roomHandler := handlers.NewRoomHandler(
		registry,
		websocket.NewUpgrader(cfg.AllowedOrigins, cfg.WSSendBuffer, log),
		log,
	)
	r := router.New(roomHandler, upgradeLimiter, reg, registry.Len, cfg.AllowedOrigins, log)

	// No WriteTimeout: it would cut hijacked websocket connections.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		registry.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("HTTP shutdown failed", "err", err)
		}
	}()

	log.Info("Relay ready",
		"http", fmt.Sprintf("http://localhost:%s", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/room/{roomId}/websocket", cfg.Port),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "err", err)
	}
	<-shutdownDone
}
