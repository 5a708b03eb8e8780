package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/coordinator"
	"github.com/path-ml/path-backend/handlers"
	"github.com/path-ml/path-backend/middleware"
	"github.com/path-ml/path-backend/monitor"
	"github.com/path-ml/path-backend/queue"
	"github.com/path-ml/path-backend/repository"
	"github.com/path-ml/path-backend/storage"
)

func main() {
	log.Println("Starting ML Training Job API")

	// Initialize configuration and shared clients
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	defer cfg.Close()

	repo := repository.NewRepository(cfg.DB)
	publisher := queue.NewPublisher(cfg.Redis, cfg.Env.JobStream)
	coord := coordinator.New(repo, publisher)

	var artifacts *storage.ArtifactStore
	if cfg.Minio != nil {
		artifacts = storage.NewArtifactStore(cfg.Minio, cfg.Env.MinioBucket)
	}

	handler := handlers.NewHandler(coord, artifacts)

	// Recover jobs whose submission event was lost between the record
	// write and the publish
	requeuer := monitor.NewRequeuer(repo, publisher, cfg.Env.RequeueAfter, cfg.Env.SweepInterval)
	requeuer.Start()

	// Setup Gin router
	router := gin.Default()

	// Enable CORS (must be first)
	router.Use(middleware.CORSMiddleware())

	// Root and health endpoints report dependency state
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "ML Training Job API",
			"status":    "running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if sqlDB, err := cfg.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}
		queueStatus := "ok"
		if err := cfg.Redis.Ping(ctx).Err(); err != nil {
			queueStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "ok" || queueStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status": "healthy",
			"services": gin.H{
				"database": dbStatus,
				"queue":    queueStatus,
			},
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		jobs := api.Group("/jobs")
		{
			jobs.POST("", handler.CreateJob)
			jobs.GET("", handler.ListJobs)
			jobs.GET("/status/:status", handler.ListJobsByStatus)
			jobs.GET("/:id", handler.GetJob)
			jobs.DELETE("/:id", handler.DeleteJob)
			jobs.GET("/:id/artifacts", handler.ListJobArtifacts)
		}

		// Dataset upload to MinIO
		api.POST("/upload", handler.UploadDataset)
	}

	// Create HTTP server with proper configuration
	srv := &http.Server{
		Addr:         ":" + cfg.Env.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Env.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	requeuer.Stop()

	// Graceful shutdown with 10-second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
