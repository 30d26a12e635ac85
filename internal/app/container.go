package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/repository"
	"github.com/noah-isme/rto-compliance-api/internal/service"
	"github.com/noah-isme/rto-compliance-api/pkg/cache"
	"github.com/noah-isme/rto-compliance-api/pkg/config"
	"github.com/noah-isme/rto-compliance-api/pkg/database"
	"github.com/noah-isme/rto-compliance-api/pkg/jobs"
	"github.com/noah-isme/rto-compliance-api/pkg/messaging"
)

// Container holds the infrastructure clients and services shared by the API server and the ops CLI.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client
	NATS  *nats.Conn

	Metrics    *service.MetricsService
	Tokens     *service.TokenService
	Compliance *service.ComplianceService
	Alerts     *service.AlertService
	Dashboard  *service.DashboardService
	Dispatcher *service.NotificationDispatcher
	AuditRepo  *repository.AuditRepository

	queue *jobs.Queue
}

// Build connects to PostgreSQL, Redis and NATS and assembles the services.
// Redis and NATS are optional: without them the sweep lock is local and notifications are only logged.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Metrics: service.NewMetricsService()}

	c.Redis, err = cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, escalation sweep lock is process local", zap.Error(err))
	}

	var notifier service.Notifier = service.NewLogNotifier(logger)
	conn, err := messaging.NewNATS(cfg.NATS, logger)
	switch {
	case err == nil:
		c.NATS = conn
		notifier = service.NewNATSNotifier(conn, cfg.NATS.Subject)
	case errors.Is(err, messaging.ErrNotConfigured):
		logger.Info("nats not configured, alert notifications are logged only")
	default:
		logger.Warn("nats unavailable, alert notifications are logged only", zap.Error(err))
	}

	c.Dispatcher = service.NewNotificationDispatcher(notifier, c.Metrics, logger, service.NotificationConfig{
		DefaultChannel:   cfg.Notify.DefaultChannel,
		DefaultRecipient: cfg.Notify.DefaultRecipient,
	})

	validate := validator.New()
	records := repository.NewStudentComplianceRepository(db)
	alerts := repository.NewAlertRepository(db)
	snapshots := repository.NewSnapshotRepository(db)
	history := repository.NewHeatmapSnapshotRepository(db)
	c.AuditRepo = repository.NewAuditRepository(db)
	locks := repository.NewLockRepository(c.Redis, logger)

	scanner := service.NewExpiryScanner(service.ExpiryScannerConfig{
		ExpiryWindowDays:   cfg.Compliance.ExpiryWindowDays,
		ReminderWindowDays: cfg.Compliance.ReminderWindowDays,
	}, logger)

	c.Tokens = service.NewTokenService(logger, service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TokenTTL: cfg.JWT.TokenTTL,
	})
	c.Compliance = service.NewComplianceService(service.ComplianceServiceParams{
		Repo:      records,
		Audit:     c.AuditRepo,
		Validator: validate,
		Metrics:   c.Metrics,
		Logger:    logger,
	})
	sweepInterval := time.Duration(0)
	if cfg.Escalation.Enabled {
		sweepInterval = cfg.Escalation.Interval
	}
	c.Alerts = service.NewAlertService(service.AlertServiceParams{
		Repo:      alerts,
		Snapshots: snapshots,
		Scanner:   scanner,
		Locker:    locks,
		Notifier:  c.Dispatcher,
		Audit:     c.AuditRepo,
		Validator: validate,
		Metrics:   c.Metrics,
		Logger:    logger,
		Config: service.AlertServiceConfig{
			EscalationAge:      cfg.Escalation.AgeLimit,
			SweepInterval:      sweepInterval,
			LockTTL:            cfg.Escalation.LockTTL,
			BreachResponseDays: cfg.Compliance.BreachResponseDays,
			CandidateBatchSize: cfg.Escalation.BatchSize,
		},
	})
	c.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Snapshots: snapshots,
		History:   history,
		Scanner:   scanner,
		Metrics:   c.Metrics,
		Logger:    logger,
		Config: service.DashboardServiceConfig{
			ExpiryWindowDays:      cfg.Compliance.ExpiryWindowDays,
			TrafficLightThreshold: cfg.Compliance.TrafficLightThreshold,
			SnapshotPeriod:        cfg.Compliance.SnapshotPeriod,
		},
	})
	return c, nil
}

// StartWorkers moves notification delivery onto the background worker pool.
func (c *Container) StartWorkers(ctx context.Context) {
	c.queue = jobs.NewQueue("alert-notifications", c.Dispatcher.Handle, jobs.QueueConfig{
		Workers:    c.Config.Notify.WorkerConcurrency,
		MaxRetries: c.Config.Notify.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     c.Logger,
	})
	c.queue.Start(ctx)
	c.Dispatcher.UseQueue(c.queue)
}

// Close drains the worker pool and releases every client.
func (c *Container) Close() {
	if c.queue != nil {
		c.queue.Stop()
	}
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			c.Logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
