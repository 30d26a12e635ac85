package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rto-compliance-api/api/swagger"
	"github.com/noah-isme/rto-compliance-api/internal/app"
	"github.com/noah-isme/rto-compliance-api/internal/handler"
	"github.com/noah-isme/rto-compliance-api/internal/middleware"
	"github.com/noah-isme/rto-compliance-api/pkg/config"
	"github.com/noah-isme/rto-compliance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rto-compliance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rto-compliance-api/pkg/middleware/requestid"
)

// @title RTO Compliance API
// @version 1.0.0
// @description Student compliance scoring, expiry scanning and alert escalation
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close()

	container.StartWorkers(ctx)
	container.Alerts.StartEscalationSweep(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(container.Metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.ReadinessCheck{
		"postgres": container.DB.PingContext,
	}
	if container.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return container.Redis.Ping(ctx).Err() }
	}
	ops := handler.NewMetricsHandler(container.Metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/system", middleware.JWT(container.Tokens), ops.System)
	handler.RegisterRoutes(api, handler.RouteDeps{
		Compliance: handler.NewComplianceHandler(container.Compliance, container.Dashboard),
		Alerts:     handler.NewAlertHandler(container.Alerts),
		Dashboard:  handler.NewDashboardHandler(container.Dashboard),
		Auth:       middleware.JWT(container.Tokens),
		Audit: func(action, resource string) gin.HandlerFunc {
			return middleware.Audit(container.AuditRepo, logr, action, resource)
		},
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
