package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcade-system/internal/config"
	"arcade-system/internal/game"
	"arcade-system/internal/infrastructure/mysql"
	appredis "arcade-system/internal/infrastructure/redis"
	appws "arcade-system/internal/infrastructure/websocket"
	"arcade-system/internal/services"
	"arcade-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting Gateway Service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize the connection registry and the invalidation bus
	registry := appws.NewRegistry(log)
	bus := services.NewInvalidationBus(registry, log)

	// Cross-instance relay over Redis pub/sub
	relay := appredis.NewInvalidationRelay(rdb, log)
	bus.SetRelay(relay, cfg.Instance.ID)

	// Domain service and command router
	domainSvc := mysql.NewMySQLDomainService(db)
	router := services.NewRouter(domainSvc, registry, bus, log)
	if missing := router.MissingHandlers(); len(missing) > 0 {
		log.Error("Router is missing command handlers", "tags", missing)
		os.Exit(1)
	}

	// Game manager and matchmaker
	settings := game.DefaultSettings()
	settings.TickRate = cfg.Game.TickRate
	settings.ScoreLimit = cfg.Game.ScoreLimit
	settings.TimeLimit = cfg.Game.TimeLimit
	settings.ForfeitGrace = cfg.Game.ForfeitGrace
	games := game.NewManager(registry, settings, log)

	matchmaker := services.NewMatchmaker(registry, games, cfg.Matchmaking.InviteTTL, log)
	games.SetOnSessionEnd(matchmaker.HandleSessionEnd)

	// Background sweeper for invite expiry and finished sessions
	sweeper := services.NewSweeper(matchmaker, games, cfg.Maintenance.SweepSpec, log)

	// Session store and websocket handler
	sessions := appredis.NewSessionStore(rdb)
	wsHandler := appws.NewHandler(sessions, registry, router, matchmaker, games, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())

	// Routes
	e.GET("/ws", wsHandler.Handle)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "gateway",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Start background services
	if err := sweeper.Start(); err != nil {
		log.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()
	go func() {
		if err := relay.Run(relayCtx, bus.ApplyRemote); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Invalidation relay stopped", "error", err)
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting gateway server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gateway service...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	relayCancel()
	games.StopAll()
	registry.CloseAll()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Gateway service stopped")
}
