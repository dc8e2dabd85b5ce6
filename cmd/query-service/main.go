package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/analytics"
	"github.com/Wuchinator/storefront-activity/internal/cache"
	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/internal/database"
	"github.com/Wuchinator/storefront-activity/internal/identity"
	"github.com/Wuchinator/storefront-activity/internal/middleware"
	"github.com/Wuchinator/storefront-activity/internal/query"
	"github.com/Wuchinator/storefront-activity/internal/server"
	"github.com/Wuchinator/storefront-activity/pkg/logger"
	"github.com/Wuchinator/storefront-activity/pkg/tracing"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "query-service"

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

	log = logger.WithService(log, serviceName)
	log.Info("Starting Query Service",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
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
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	tokens, err := identity.NewTokens(cfg.Security.JWTSecret, time.Hour)
	if err != nil {
		log.Fatal("Admin API needs JWT_SECRET", zap.Error(err))
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	// the admin API works without Redis, just uncached
	var summaryCache query.SummaryCache
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	redisClient, err := cache.NewClient(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	cancel()
	if err != nil {
		log.Warn("Redis unavailable, activity summary is not cached",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
	} else {
		defer redisClient.Close()
		summaryCache = cache.NewService(redisClient, "admin:", cfg.Redis.SummaryTTL, logger.WithComponent(log, "cache"))
	}

	activityRepo := query.NewActivityRepository(db.DB, log)
	analyticsRepo := analytics.NewRepository(db.DB, log)
	queryService := query.NewService(activityRepo, analyticsRepo, summaryCache, cfg.Tracking.FeedLimit, log)
	queryHandler := query.NewHandler(queryService, log)
	auth := middleware.NewAuthMiddleware(tokens, log)

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
	queryHandler.RegisterRoutes(router, auth.RequireAuth(), auth.RequireAdmin())

	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("Failed to create listener", zap.Error(err))
	}

	srv := server.New(serviceName, cfg.HTTPPort, router, log)
	if err := srv.Run(ctx, listener); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}

	log.Info("Query Service stopped")
}
