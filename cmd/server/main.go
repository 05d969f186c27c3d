package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"pong-arena/internal/api"
	"pong-arena/internal/arena"
	"pong-arena/internal/config"
	"pong-arena/internal/game"
	"pong-arena/internal/history"
	"pong-arena/internal/presence"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🏓 ================================")
	log.Println("🏓  PONG ARENA - MATCH SERVER")
	log.Println("🏓 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	serverCfg := appConfig.Server
	port := strconv.Itoa(serverCfg.Port)

	log.Printf("🎮 Simulation: %d ticks/s, first to %d points", game.TicksPerSecond, game.WinScore)
	log.Printf("🛡️ Connection limits: %d total, %d per IP",
		serverCfg.MaxWSConnections, serverCfg.MaxWSConnsPerIP)

	// Match result handoff: Redis stream when configured, log-only otherwise
	var recorder game.ResultRecorder
	var redisRecorder *history.RedisRecorder
	if appConfig.History.Enabled {
		rec, err := history.NewRedisRecorder(context.Background(), appConfig.History)
		if err != nil {
			log.Fatalf("❌ History backend unavailable: %v", err)
		}
		redisRecorder = rec
		recorder = rec
		log.Printf("📜 Match history: redis %s, stream %q", appConfig.History.Addr, appConfig.History.Stream)
	} else {
		recorder = history.LogRecorder{}
		log.Println("⚠️ REDIS_ADDR not set - match results will only be logged")
	}

	// Player availability broadcasts: NATS when configured
	var notifier arena.Notifier
	var natsNotifier *presence.NATSNotifier
	if appConfig.Presence.Enabled {
		n, err := presence.NewNATSNotifier(appConfig.Presence)
		if err != nil {
			log.Fatalf("❌ Presence backend unavailable: %v", err)
		}
		natsNotifier = n
		notifier = n
		log.Printf("📡 Presence: nats %s, subject %q", appConfig.Presence.URL, appConfig.Presence.Subject)
	} else {
		notifier = arena.NopNotifier{}
		log.Println("⚠️ NATS_URL not set - availability broadcasts disabled")
	}

	// Start debug server (pprof + metrics, localhost only)
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	// Core wiring: registry -> matchmaker -> gateway -> router
	registry := arena.NewRegistry()
	matchmaker := arena.NewMatchmaker(arena.MatchmakerConfig{
		Registry: registry,
		Recorder: recorder,
		Observer: api.PromObserver{},
		Notifier: notifier,
	})

	gateway := api.NewGateway(api.GatewayConfig{
		Matchmaker:     matchmaker,
		Resolver:       api.HeaderIdentityResolver{RequireID: os.Getenv("REQUIRE_PLAYER_ID") == "true"},
		MaxConnections: serverCfg.MaxWSConnections,
		MaxConnsPerIP:  serverCfg.MaxWSConnsPerIP,
	})

	rateLimiter := api.NewIPRateLimiter(appConfig.RateLimit)
	router := api.NewRouter(api.RouterConfig{
		Gateway:     gateway,
		Registry:    registry,
		Matchmaker:  matchmaker,
		RateLimiter: rateLimiter,
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("🌐 Arena listening on http://localhost:%s", port)
		log.Printf("🔌 WebSocket endpoint: ws://localhost:%s/ws", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	matchmaker.Close()
	rateLimiter.Stop()
	if natsNotifier != nil {
		natsNotifier.Close()
	}
	if redisRecorder != nil {
		if err := redisRecorder.Close(); err != nil {
			log.Printf("⚠️ Closing history backend: %v", err)
		}
	}
	log.Println("👋 Goodbye!")
}
