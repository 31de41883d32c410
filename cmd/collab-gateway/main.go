package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-service/internal/api/handlers"
	"document-service/internal/api/middleware"
	"document-service/internal/config"
	"document-service/internal/domain"
	"document-service/internal/infrastructure/mysql"
	"document-service/internal/infrastructure/redis"
	"document-service/internal/infrastructure/websocket"
	"document-service/internal/realtime"
	"document-service/internal/services"
	"document-service/pkg/logger"
	"document-service/pkg/utils"

	"github.com/gorilla/mux"
)

// The gateway holds websocket viewers only. Edits arrive from the document
// service instances over the redis relay.
func main() {
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level).With("service", "collab-gateway")

	if !cfg.Relay.Enabled {
		log.Warn("Relay disabled, gateway viewers will only receive presence updates")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := utils.InitializeMysql(ctx, cfg.MySQL)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var documentCache domain.DocumentCache
	if cfg.Cache.Enabled {
		documentCache = redis.NewRedisDocumentCache(rdb, cfg.Cache.DocumentTTL)
	}
	reader := services.NewDocumentReader(mysql.NewMySQLDocumentRepository(db), documentCache, log)

	hub := realtime.NewHub(reader, realtime.Options{
		OutboundQueueSize: cfg.Stream.OutboundQueueSize,
		OverflowGrace:     cfg.Stream.OverflowGrace,
		InitLoadTimeout:   cfg.Stream.InitLoadTimeout,
	}, log)

	background, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if cfg.Relay.Enabled {
		relay := redis.NewRedisChangeRelay(rdb, cfg.Relay.Channel, log)
		listener := services.NewChangeListener(hub, log)
		go func() {
			if err := listener.Start(background, relay); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Change listener stopped", "error", err)
			}
		}()
	}

	heartbeat := services.NewCronHeartbeat(cfg.Stream.HeartbeatSpec, hub, log)
	if err := heartbeat.Start(background); err != nil {
		log.Error("Failed to start heartbeat", "error", err)
		os.Exit(1)
	}

	wsHandlers := handlers.NewWebSocketHandlers(hub, reader, websocket.Options{
		WriteTimeout: cfg.Stream.WriteTimeout,
		IdleTimeout:  cfg.Stream.IdleTimeout,
	}, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.RequestLogger(log))

	wsHandlers.Register(router)

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"service":  "collab-gateway",
			"instance": cfg.Instance.ID,
			"realtime": hub.Stats(),
		})
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting collaboration gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down collaboration gateway...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopBackground()
	heartbeat.Stop()
	hub.Shutdown()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Collaboration gateway stopped")
}
