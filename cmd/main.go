package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"pricecompare/internal/caching"
	"pricecompare/internal/handlers"
	"pricecompare/internal/jobs/background"
	"pricecompare/internal/repositories"
	"pricecompare/internal/services"
	"pricecompare/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO batch archiving, optional: skipped unless an endpoint is set
	var archiveSvc services.ArchiveService
	if minioEndpoint := os.Getenv("MINIO_ENDPOINT"); minioEndpoint != "" {
		minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
		if minioAccessKey == "" {
			minioAccessKey = "minioadmin" // Default for development
		}
		minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
		if minioSecretKey == "" {
			minioSecretKey = "minioadmin" // Default for development
		}
		useSSL := os.Getenv("MINIO_USE_SSL") == "true"

		archiveSvc, err = services.NewMinioArchiveService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
		if err != nil {
			log.Fatalf("Failed to initialize archive service: %v", err)
		}
		if err := archiveSvc.EnsureBucketExists(context.Background()); err != nil {
			log.Printf("WARN: could not ensure archive bucket: %v", err)
		}
	}

	// Create repositories and services
	nodeRepo := repositories.NewNodeRepo(pool)
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)
	importSvc := services.NewImportService(nodeRepo, cacheSvc, archiveSvc)
	nodeSvc := services.NewNodeService(nodeRepo, cacheSvc)
	statsSvc := services.NewStatsService(nodeRepo, cacheSvc)

	// Create handlers
	importHandlers := handlers.NewImportHandlers(importSvc)
	nodeHandlers := handlers.NewNodeHandlers(nodeSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, archiveSvc, statsSvc, version)

	// Background jobs
	scheduler, err := background.NewJobScheduler(statsSvc, nodeRepo)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("WARN: scheduler shutdown: %v", err)
		}
	}()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	// Swagger UI
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Catalog routes
	e.POST("/imports", importHandlers.Import)
	e.GET("/nodes/:id", nodeHandlers.GetNode)
	e.DELETE("/delete/:id", nodeHandlers.DeleteNode)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("pricecompare server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
