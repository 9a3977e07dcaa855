package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imageConverter/api/cache"
	"imageConverter/api/config"
	"imageConverter/api/database"
	"imageConverter/api/handlers"
	"imageConverter/api/kafka"
	"imageConverter/api/middleware"
	"imageConverter/api/repository"
	"imageConverter/api/service"
	"imageConverter/worker/archive"
	"imageConverter/worker/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := database.ConnectCache(database.CacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Close()

	producer, err := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisCache)
	store := storage.NewFileStorage(cfg.StorageRoot)
	exporter := archive.NewExporter(logger)

	batchService := service.NewBatchService(repo, statusCache, producer, store, exporter, cfg.KafkaTopic)
	batchHandler := handlers.NewBatchHandler(batchService, logger, cfg.MaxFileSize, cfg.MaxBatchSize)

	mux := http.NewServeMux()
	mux.HandleFunc("/batches", batchHandler.Create)
	mux.HandleFunc("/batches/", batchHandler.Batches)
	mux.HandleFunc("/items/", batchHandler.Items)
	mux.HandleFunc("/previews/", batchHandler.Preview)
	mux.HandleFunc("/health", batchHandler.Health)

	handler := middleware.TraceID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API service started",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
