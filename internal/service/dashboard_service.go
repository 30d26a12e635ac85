package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	"github.com/noah-isme/rto-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

type heatmapHistory interface {
	LatestBefore(ctx context.Context, before time.Time) ([]models.HeatmapSnapshot, error)
	SaveBatch(ctx context.Context, snapshots []models.HeatmapSnapshot) error
}

// DashboardServiceConfig tunes aggregate reads.
type DashboardServiceConfig struct {
	ExpiryWindowDays      int
	TrafficLightThreshold int
	SnapshotPeriod        time.Duration
}

// DashboardServiceParams groups collaborators for DashboardService.
type DashboardServiceParams struct {
	Snapshots snapshotLoader
	History   heatmapHistory
	Scanner   *ExpiryScanner
	Metrics   *MetricsService
	Logger    *zap.Logger
	Clock     func() time.Time
	Config    DashboardServiceConfig
}

// DashboardService serves population-wide aggregates. Every call recomputes from a fresh snapshot.
type DashboardService struct {
	snapshots snapshotLoader
	history   heatmapHistory
	scanner   *ExpiryScanner
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.ExpiryWindowDays <= 0 {
		cfg.ExpiryWindowDays = 30
	}
	if cfg.TrafficLightThreshold <= 0 {
		cfg.TrafficLightThreshold = defaultTrafficLightThreshold
	}
	if cfg.SnapshotPeriod <= 0 {
		cfg.SnapshotPeriod = 7 * 24 * time.Hour
	}
	scanner := params.Scanner
	if scanner == nil {
		scanner = NewExpiryScanner(ExpiryScannerConfig{ExpiryWindowDays: cfg.ExpiryWindowDays}, logger)
	}
	return &DashboardService{
		snapshots: params.Snapshots,
		history:   params.History,
		scanner:   scanner,
		metrics:   params.Metrics,
		logger:    logger,
		now:       clock,
		cfg:       cfg,
	}
}

// Stats returns the population summary.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	stats := AggregateDashboard(snapshot.Records, snapshot.Alerts, s.now(), s.cfg.ExpiryWindowDays)
	stats.Skipped = len(snapshot.Skipped)
	return &stats, nil
}

// TrafficLight returns one signal per dashboard type.
func (s *DashboardService) TrafficLight(ctx context.Context) (*dto.TrafficLightResponse, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.TrafficLightResponse{
		GeneratedAt: s.now().UTC(),
		Threshold:   s.cfg.TrafficLightThreshold,
		Lights:      BuildTrafficLights(snapshot.Alerts, s.cfg.TrafficLightThreshold),
	}, nil
}

// Heatmap returns the risk grid with trends against the last captured period before the current one.
func (s *DashboardService) Heatmap(ctx context.Context) (*dto.HeatmapResponse, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	previous := s.previousScores(ctx, s.periodStart(now))
	return &dto.HeatmapResponse{
		GeneratedAt: now,
		Cells:       BuildHeatmap(snapshot.Alerts, previous),
	}, nil
}

// CaptureSnapshot stores the current heatmap scores for the running period, replacing an earlier capture
// of the same period.
func (s *DashboardService) CaptureSnapshot(ctx context.Context) (*dto.SnapshotResult, error) {
	if s.history == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "heatmap history is not configured")
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	period := s.periodStart(now)
	cells := BuildHeatmap(snapshot.Alerts, nil)
	rows := make([]models.HeatmapSnapshot, 0, len(cells))
	for _, cell := range cells {
		rows = append(rows, models.HeatmapSnapshot{
			DashboardType:   cell.DashboardType,
			Category:        cell.Category,
			PeriodStart:     period,
			ComplianceScore: cell.ComplianceScore,
			AlertCount:      cell.AlertCount,
			CreatedAt:       now,
		})
	}
	if err := s.history.SaveBatch(ctx, rows); err != nil {
		return nil, appErrors.Internal(err, "failed to store heatmap snapshot")
	}
	return &dto.SnapshotResult{PeriodStart: period, Cells: len(rows)}, nil
}

// ExpiryReport scans the population for expiring, breached and due items.
func (s *DashboardService) ExpiryReport(ctx context.Context) (*dto.ExpiryReport, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	report := s.scanner.Scan(snapshot.Records, s.now())
	return &report, nil
}

func (s *DashboardService) load(ctx context.Context) (*repository.ComplianceSnapshot, error) {
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "compliance records are not available")
	}
	started := time.Now()
	snapshot, err := s.snapshots.LoadSnapshot(ctx)
	s.metrics.ObserveDBQuery("compliance_snapshot", time.Since(started))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load compliance snapshot")
	}
	for _, skipErr := range snapshot.Skipped {
		s.logger.Warn("skipping undecodable compliance record", zap.Error(skipErr))
	}
	s.metrics.RecordSkippedRecords(len(snapshot.Skipped))
	return snapshot, nil
}

// previousScores degrades to no trend when history is missing or failing.
func (s *DashboardService) previousScores(ctx context.Context, before time.Time) map[models.HeatmapKey]int {
	if s.history == nil {
		return nil
	}
	rows, err := s.history.LatestBefore(ctx, before)
	if err != nil {
		s.logger.Warn("failed to load heatmap history", zap.Error(err))
		return nil
	}
	scores := make(map[models.HeatmapKey]int, len(rows))
	for _, row := range rows {
		scores[models.HeatmapKey{DashboardType: row.DashboardType, Category: row.Category}] = row.ComplianceScore
	}
	return scores
}

func (s *DashboardService) periodStart(now time.Time) time.Time {
	return now.UTC().Truncate(s.cfg.SnapshotPeriod)
}
