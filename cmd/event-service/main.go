package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/internal/database"
	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/Wuchinator/storefront-activity/internal/middleware"
	"github.com/Wuchinator/storefront-activity/internal/server"
	"github.com/Wuchinator/storefront-activity/pkg/kafka"
	"github.com/Wuchinator/storefront-activity/pkg/logger"
	"github.com/Wuchinator/storefront-activity/pkg/tracing"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "event-service"

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Error loading config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Error initializing logger: %v", err))
	}

	defer log.Sync()

	log = logger.WithService(log, serviceName)
	log.Info("Starting Event Service",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		Version:      cfg.Tracing.Version,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal("Error initializing tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Error initializing database", zap.Error(err))
	}

	defer db.Close()

	var producer event.KafkaProducer
	if cfg.Kafka.Enabled {
		kafkaProducer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			Retries:          cfg.Kafka.ProducerRetries,
			Timeout:          cfg.Kafka.ProducerTimeout,
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Compression:      cfg.Kafka.CompressionType,
			IdempotentWrites: cfg.Kafka.IdempotentWrites,
			MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
		}, logger.WithComponent(log, "kafka-producer"))
		if err != nil {
			log.Fatal("Error initializing kafka", zap.Error(err))
		}
		defer kafkaProducer.Close()
		producer = kafkaProducer
	} else {
		log.Warn("Kafka disabled, events are stored without fan-out")
	}

	eventRepo := event.NewRepository(db.DB, log)
	eventService := event.NewService(eventRepo, producer, db, log)
	eventHandler := event.NewHandler(eventService, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.Recovery(log),
		otelgin.Middleware(serviceName),
		middleware.RequestLogger(log),
		middleware.CORS(cfg.CORS),
	)
	eventHandler.RegisterRoutes(router, cfg.Tracking.BeaconPath)

	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)

	if err != nil {
		log.Fatal("Error initializing gRPC listener", zap.Error(err))
	}

	srv := server.New(serviceName, cfg.HTTPPort, router, log)
	if err := srv.Run(ctx, listener); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}

	log.Info("Event Service stopped")
}
