package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/cache"
	"github.com/viewmaxx/backend/internal/config"
	"github.com/viewmaxx/backend/internal/database"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/queue"
	"github.com/viewmaxx/backend/internal/realtime"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/internal/scheduler"
	"github.com/viewmaxx/backend/internal/storage"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/internal/tracing"
)

// API bundles the dependencies of the HTTP handlers
type API struct {
	cfg     *config.Config
	repo    *database.Repository
	cache   *cache.Cache
	storage *storage.Storage
	queue   *queue.Queue
	tokens  *token.Service
	gateway *realtime.Gateway
	logger  *logging.Logger
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	respond.SetDevelopment(cfg.IsDevelopment())
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize the ephemeral store
	store, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	// Initialize object storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Token service and realtime gateway share the same stores
	tokens := token.NewService(repo, store, cfg.Auth, logger)
	hub := realtime.NewHub(logger)
	gateway := realtime.NewGateway(hub, realtime.NewAuthenticator(tokens, repo), logger)

	api := &API{
		cfg:     cfg,
		repo:    repo,
		cache:   store,
		storage: stor,
		queue:   q,
		tokens:  tokens,
		gateway: gateway,
		logger:  logger,
	}

	// Re-publish transcode jobs for uploads stuck in processing
	requeuer := scheduler.NewRequeuer(repo, q, logger, 5*time.Minute, 30*time.Minute)
	requeuer.Start()
	defer requeuer.Stop()

	router := api.setupRouter()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("ViewmaXX API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	if err := api.cache.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "redis unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": api.cfg.Environment,
	})
}
