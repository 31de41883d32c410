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

	"document-service/internal/api/handlers"
	"document-service/internal/config"
	"document-service/internal/domain"
	"document-service/internal/infrastructure/mysql"
	"document-service/internal/infrastructure/redis"
	"document-service/internal/infrastructure/users"
	"document-service/internal/realtime"
	"document-service/internal/services"
	"document-service/pkg/logger"
	"document-service/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const publishTimeout = 2 * time.Second

func main() {
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting document service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	db, err := utils.InitializeMysql(ctx, cfg.MySQL)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Connected to MySQL")

	// Initialize repositories
	documentRepo := mysql.NewMySQLDocumentRepository(db)
	changeRepo := mysql.NewMySQLChangeRepository(db)
	shareRepo := mysql.NewMySQLShareRepository(db)

	var documentCache domain.DocumentCache
	if cfg.Cache.Enabled {
		documentCache = redis.NewRedisDocumentCache(rdb, cfg.Cache.DocumentTTL)
	}
	reader := services.NewDocumentReader(documentRepo, documentCache, log)

	hub := realtime.NewHub(reader, realtime.Options{
		OutboundQueueSize: cfg.Stream.OutboundQueueSize,
		OverflowGrace:     cfg.Stream.OverflowGrace,
		InitLoadTimeout:   cfg.Stream.InitLoadTimeout,
	}, log)

	background, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var notifier domain.ChangeNotifier
	if cfg.Relay.Enabled {
		relay := redis.NewRedisChangeRelay(rdb, cfg.Relay.Channel, log)
		notifier = services.NewRelayChangeNotifier(relay, hub, cfg.Instance.ID, publishTimeout, log)

		listener := services.NewChangeListener(hub, log)
		go func() {
			if err := listener.Start(background, relay); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Change listener stopped", "error", err)
			}
		}()
	} else {
		notifier = services.NewLocalChangeNotifier(hub, log)
	}

	userDirectory := users.NewClient(cfg.Users.BaseURL, cfg.Users.Timeout, log)
	documentService := services.NewDocumentService(documentRepo, changeRepo, shareRepo, reader, userDirectory, notifier, log)

	heartbeat := services.NewCronHeartbeat(cfg.Stream.HeartbeatSpec, hub, log)
	if err := heartbeat.Start(background); err != nil {
		log.Error("Failed to start heartbeat", "error", err)
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RequestLimit))))

	// Initialize handlers
	documentHandler := handlers.NewDocumentHandler(documentService, hub, log)
	streamHandler := handlers.NewStreamHandler(hub, reader, handlers.StreamOptions{
		WriteTimeout: cfg.Stream.WriteTimeout,
		IdleTimeout:  cfg.Stream.IdleTimeout,
	}, log)

	// API routes
	api := e.Group("/api/documents")
	documentHandler.Register(api)
	api.GET("/:documentId/stream", streamHandler.Stream)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "document-service",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().Format(time.RFC3339),
			"realtime":  hub.Stats(),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting document server", "address", serverAddr)

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

	log.Info("Shutting down document service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopBackground()
	heartbeat.Stop()

	// Open streams keep their handlers running; close them before the server waits on them.
	hub.Shutdown()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Document service stopped")
}
