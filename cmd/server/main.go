package main

import (
	"alcyxob/course-marketplace/internal/api"
	"alcyxob/course-marketplace/internal/cache"
	"alcyxob/course-marketplace/internal/config"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/metrics"
	"alcyxob/course-marketplace/internal/repository/mongo"
	"alcyxob/course-marketplace/internal/service"
	"alcyxob/course-marketplace/internal/storage"
	"alcyxob/course-marketplace/internal/tracing"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title Course Marketplace API
// @version 1.0
// @description API for course catalog, purchases, enrollments and learning progress.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Until the configured logger exists, write to stderr
	bootLog := logger.NewStderr()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		bootLog.Fatal("Could not load config", "error", err)
	}

	// --- Logger ---
	appLog, err := logger.New(cfg.Log.Mode, cfg.Log.File)
	if err != nil {
		bootLog.Fatal("Could not initialize logger", "mode", cfg.Log.Mode, "file", cfg.Log.File, "error", err)
	}
	bootLog.Sync()
	defer appLog.Sync()
	appLog.Info("Starting Course Marketplace server", "address", cfg.Server.Address, "mode", cfg.Server.Mode)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	// --- Tracing ---
	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing, appLog)
	if err != nil {
		appLog.Fatal("Could not initialize tracing", "error", err)
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		appLog.Fatal("Could not connect to MongoDB", "error", err)
	}
	defer func() {
		appLog.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			appLog.Error("Failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	appLog.Info("Database connection established", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		for collection, err := range mongo.EnsureIndexes(ctx, appDB) {
			appLog.Error("Index creation failed", "collection", collection, "error", err)
		}
		appLog.Info("Index creation process completed")
	}()

	// --- Initialize Storage ---
	fileStorage := storage.NewDisabledStorage()
	if cfg.S3.BucketName != "" {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3, appLog)
		if err != nil {
			appLog.Fatal("Failed to initialize S3 storage", "error", err)
		}
	} else {
		appLog.Warn("S3 bucket not configured, lesson video uploads are disabled")
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	courseRepo := mongo.NewMongoCourseRepository(appDB)
	lessonRepo := mongo.NewMongoLessonRepository(appDB)
	orderRepo := mongo.NewMongoOrderRepository(appDB)
	enrollmentRepo := mongo.NewMongoEnrollmentRepository(appDB)

	// --- Catalog Cache ---
	var catalog service.CatalogLookup = service.NewCatalogLookup(courseRepo, lessonRepo)
	var invalidator service.CatalogInvalidator
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			appLog.Fatal("Could not connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		catalogCache := cache.NewCatalogCache(catalog, rdb, cfg.Redis.CatalogTTL, appLog)
		catalog = catalogCache
		invalidator = catalogCache
		appLog.Info("Catalog cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CatalogTTL)
	}

	// --- Initialize Services ---
	appMetrics := metrics.New()
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, appLog)
	catalogService := service.NewCatalogService(courseRepo, lessonRepo, enrollmentRepo, fileStorage, invalidator, appLog)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, catalog, service.EnrollmentServiceConfig{
		CompletionThreshold: cfg.Progress.CompletionThreshold,
		RecentLimit:         cfg.Progress.RecentLimit,
	}, appMetrics, appLog)
	orderService := service.NewOrderService(orderRepo, courseRepo, enrollmentRepo, enrollmentService, service.NewMockPaymentProcessor(), appLog)

	// --- Setup Routes ---
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TracingEnabled: cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
	}, appLog, appMetrics)
	api.SetupRoutes(router, cfg.JWT.Secret, appLog, api.Services{
		Auth:       authService,
		Catalog:    catalogService,
		Enrollment: enrollmentService,
		Order:      orderService,
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("Server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(ctxShutdown); err != nil {
		appLog.Error("Failed to flush traces", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			appLog.Error("Failed to close Redis client", "error", err)
		}
	}

	appLog.Info("Server exiting")
}
