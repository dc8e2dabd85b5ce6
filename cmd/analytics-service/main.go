package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/analytics"
	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/internal/database"
	"github.com/Wuchinator/storefront-activity/pkg/kafka"
	"github.com/Wuchinator/storefront-activity/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "analytics-service")
	log.Info("Starting Analytics Service",
		zap.String("environment", cfg.Environment),
		zap.String("consumer_group", cfg.Kafka.ConsumerGroup),
	)

	if !cfg.Kafka.Enabled {
		log.Fatal("Analytics Service needs Kafka, set KAFKA_ENABLED=true")
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	analyticsRepo := analytics.NewRepository(db.DB, log)
	analyticsService := analytics.NewService(analyticsRepo, log)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topics:            []string{cfg.Kafka.Topic},
		GroupID:           cfg.Kafka.ConsumerGroup,
		AutoCommit:        true,
		CommitInterval:    1 * time.Second,
		SessionTimeout:    10 * time.Second,
		RebalanceStrategy: "sticky",
	}, analyticsService.CreateMessageHandler(), logger.WithComponent(log, "kafka-consumer"))
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Start(ctx)
	})

	g.Go(func() error {
		select {
		case <-consumer.Ready():
			log.Info("Kafka consumer is ready and consuming messages")
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		analyticsService.RunCleanup(ctx, time.Hour)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer error", zap.Error(err))
	}

	log.Info("Analytics Service stopped")
}
