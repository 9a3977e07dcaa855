package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imageConverter/worker/cache"
	"imageConverter/worker/codec"
	"imageConverter/worker/config"
	"imageConverter/worker/kafka"
	"imageConverter/worker/pool"
	"imageConverter/worker/resource"
	"imageConverter/worker/service"
	"imageConverter/worker/storage"

	workerrepo "imageConverter/worker/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	logger.Info("Worker Service starting",
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	store := storage.NewFileStorage(cfg.StorageRoot)

	tracker, err := resource.NewTracker(storage.PreviewDir(cfg.StorageRoot), logger)
	if err != nil {
		logger.Fatal("Failed to init preview tracker", zap.Error(err))
	}
	defer tracker.ReleaseAll()

	processor := service.NewProcessor(
		workerrepo.NewPostgresRepo(db),
		cache.NewStatusCache(redisClient),
		store,
		codec.NewImagingInvoker(logger),
		tracker,
		cfg.MaxConcurrency,
		logger,
	)

	consumer, err := kafka.NewConsumer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaGroupID)
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	workers := pool.NewWorkerPool(cfg.MessageWorkers)

	handler := func(ctx context.Context, msg *kafka.BatchMessage) error {
		workers.Submit(ctx, msg, processor.Process)
		return nil
	}

	for ctx.Err() == nil {
		if err := consumer.Consume(ctx, cfg.KafkaTopic, handler); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("Consumer error", zap.Error(err))
		}
	}

	logger.Info("Worker shutting down")
	workers.Wait()
}
