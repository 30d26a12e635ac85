package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	"github.com/noah-isme/rto-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

const (
	// escalationLockKey serialises sweeps across replicas.
	escalationLockKey = "compliance:escalation-sweep"
	// systemActor is recorded for batch runs that no user triggered directly.
	systemActor = "system"
)

type alertStore interface {
	Create(ctx context.Context, alert *models.ComplianceAlert) error
	GetByID(ctx context.Context, id string) (*models.ComplianceAlert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]models.ComplianceAlert, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateAlertStatusParams) error
	Escalate(ctx context.Context, id string, from []models.AlertStatus, at time.Time) error
	ListEscalationCandidates(ctx context.Context, cutoff time.Time, after *repository.EscalationCursor, limit int) ([]models.ComplianceAlert, error)
	ListOpenKeys(ctx context.Context) ([]models.AlertKey, error)
}

type distributedLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type snapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*repository.ComplianceSnapshot, error)
}

type alertNotifier interface {
	Dispatch(ctx context.Context, alert models.ComplianceAlert, reason string)
}

// AlertServiceConfig governs escalation behaviour.
type AlertServiceConfig struct {
	EscalationAge      time.Duration
	SweepInterval      time.Duration
	LockTTL            time.Duration
	BreachResponseDays int
	CandidateBatchSize int
}

// AlertServiceParams groups collaborators for AlertService.
type AlertServiceParams struct {
	Repo      alertStore
	Snapshots snapshotLoader
	Scanner   *ExpiryScanner
	Locker    distributedLocker
	Notifier  alertNotifier
	Audit     auditLogger
	Validator *validator.Validate
	Metrics   *MetricsService
	Logger    *zap.Logger
	Clock     func() time.Time
	Config    AlertServiceConfig
}

// AlertService owns the alert lifecycle: creation, acknowledgement, resolution and escalation.
type AlertService struct {
	repo      alertStore
	snapshots snapshotLoader
	scanner   *ExpiryScanner
	locker    distributedLocker
	notifier  alertNotifier
	audit     auditLogger
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       AlertServiceConfig
}

// NewAlertService constructs the service.
func NewAlertService(params AlertServiceParams) *AlertService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	registerComplianceValidations(validate)
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.EscalationAge <= 0 {
		cfg.EscalationAge = 14 * 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.BreachResponseDays <= 0 {
		cfg.BreachResponseDays = 7
	}
	if cfg.CandidateBatchSize <= 0 {
		cfg.CandidateBatchSize = 500
	}
	if cfg.CandidateBatchSize > 1000 {
		cfg.CandidateBatchSize = 1000
	}
	scanner := params.Scanner
	if scanner == nil {
		scanner = NewExpiryScanner(ExpiryScannerConfig{}, logger)
	}
	return &AlertService{
		repo:      params.Repo,
		snapshots: params.Snapshots,
		scanner:   scanner,
		locker:    params.Locker,
		notifier:  params.Notifier,
		audit:     params.Audit,
		validator: validate,
		metrics:   params.Metrics,
		logger:    logger,
		now:       clock,
		cfg:       cfg,
	}
}

// List returns a page of alerts.
func (s *AlertService) List(ctx context.Context, query dto.AlertQuery) ([]models.ComplianceAlert, *models.Pagination, error) {
	for _, status := range query.Status {
		if !status.IsValid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported alert status %q", status))
		}
	}
	for _, severity := range query.Severity {
		if !severity.IsValid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported alert severity %q", severity))
		}
	}
	if query.DashboardType != "" && !query.DashboardType.IsValid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported dashboard type")
	}
	if query.Category != "" && !query.Category.IsValid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported category")
	}
	filter := models.AlertFilter{
		Status:        query.Status,
		Severity:      query.Severity,
		DashboardType: query.DashboardType,
		Category:      query.Category,
		StudentID:     strings.TrimSpace(query.StudentID),
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	alerts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one alert.
func (s *AlertService) Get(ctx context.Context, id string) (*models.ComplianceAlert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to load alert")
	}
	return alert, nil
}

// Create raises a manual alert.
func (s *AlertService) Create(ctx context.Context, req dto.CreateAlertRequest, actorID string) (*models.ComplianceAlert, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	now := s.now().UTC()
	alert := &models.ComplianceAlert{
		StudentID:     optionalString(req.StudentID),
		DashboardType: req.DashboardType,
		Category:      req.Category,
		ItemKey:       optionalString(req.ItemKey),
		Type:          models.AlertTypeManual,
		Title:         strings.TrimSpace(req.Title),
		Message:       strings.TrimSpace(req.Message),
		Severity:      req.Severity,
		Status:        models.AlertStatusActive,
		DueDate:       req.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, appErrors.Internal(err, "failed to create alert")
	}
	s.afterCreate(ctx, alert, actorID)
	return alert, nil
}

// Acknowledge moves an active alert to acknowledged.
func (s *AlertService) Acknowledge(ctx context.Context, id, actorID string) (*models.ComplianceAlert, error) {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("alert is %s; only active alerts can be acknowledged", alert.Status))
	}
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, repository.UpdateAlertStatusParams{
		ID:      id,
		From:    []models.AlertStatus{models.AlertStatusActive},
		To:      models.AlertStatusAcknowledged,
		At:      now,
		ActorID: optionalString(actorID),
	}); err != nil {
		return nil, transitionError(err, "failed to acknowledge alert")
	}
	previous := *alert
	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = optionalString(actorID)
	alert.UpdatedAt = now
	s.metrics.RecordAlertTransition(alert.Status)
	s.emitAudit(ctx, actorID, models.AuditActionAlertAcknowledge, alert.ID, previous, alert)
	return alert, nil
}

// Resolve closes an alert from any open status.
func (s *AlertService) Resolve(ctx context.Context, id string, req dto.ResolveAlertRequest, actorID string) (*models.ComplianceAlert, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "alert is already resolved")
	}
	now := s.now().UTC()
	notes := optionalString(req.Notes)
	if err := s.repo.UpdateStatus(ctx, repository.UpdateAlertStatusParams{
		ID:              id,
		From:            []models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged, models.AlertStatusEscalated},
		To:              models.AlertStatusResolved,
		At:              now,
		ActorID:         optionalString(actorID),
		ResolutionNotes: notes,
	}); err != nil {
		return nil, transitionError(err, "failed to resolve alert")
	}
	previous := *alert
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = optionalString(actorID)
	alert.ResolutionNotes = notes
	alert.UpdatedAt = now
	s.metrics.RecordAlertTransition(alert.Status)
	s.emitAudit(ctx, actorID, models.AuditActionAlertResolve, alert.ID, previous, alert)
	return alert, nil
}

// Escalate raises one alert's escalation level on request. Active alerts become escalated; acknowledged
// and escalated alerts keep their status and only gain a level.
func (s *AlertService) Escalate(ctx context.Context, id, actorID string) (*models.ComplianceAlert, error) {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "resolved alerts cannot be escalated")
	}
	now := s.now().UTC()
	from := []models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged, models.AlertStatusEscalated}
	if err := s.repo.Escalate(ctx, id, from, now); err != nil {
		return nil, transitionError(err, "failed to escalate alert")
	}
	previous := *alert
	applyEscalation(alert, now)
	s.metrics.RecordAlertTransition(models.AlertStatusEscalated)
	s.emitAudit(ctx, actorID, models.AuditActionAlertEscalate, alert.ID, previous, alert)
	s.dispatch(ctx, *alert, "escalated")
	return alert, nil
}

// ProcessEscalations escalates every active alert older than the configured age. The sweep holds a
// distributed lock; when another replica holds it the call returns ErrLockNotAcquired. Each alert is
// escalated with a guarded update, so re-running the sweep never double-increments.
func (s *AlertService) ProcessEscalations(ctx context.Context) (*dto.EscalationResult, error) {
	started := time.Now()
	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, escalationLockKey, s.cfg.LockTTL)
		if err != nil {
			s.metrics.RecordEscalationSweep("failed", time.Since(started))
			return nil, appErrors.Internal(err, "failed to acquire escalation lock")
		}
		if !ok {
			s.metrics.RecordEscalationSweep("locked", time.Since(started))
			return nil, appErrors.ErrLockNotAcquired
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), escalationLockKey, token); err != nil {
				s.logger.Warn("failed to release escalation lock", zap.Error(err))
			}
		}()
	}

	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.EscalationAge)
	result := &dto.EscalationResult{ProcessedAt: now, Escalated: []string{}}
	var cursor *repository.EscalationCursor
	for {
		batch, err := s.repo.ListEscalationCandidates(ctx, cutoff, cursor, s.cfg.CandidateBatchSize)
		if err != nil {
			s.metrics.RecordEscalationSweep("failed", time.Since(started))
			return nil, appErrors.Internal(err, "failed to list escalation candidates")
		}
		for i := range batch {
			s.escalateCandidate(ctx, batch[i], now, result)
		}
		result.Candidates += len(batch)
		if len(batch) < s.cfg.CandidateBatchSize {
			break
		}
		last := batch[len(batch)-1]
		cursor = &repository.EscalationCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	s.metrics.RecordEscalationSweep("completed", time.Since(started))
	s.logger.Info("escalation sweep finished",
		zap.Int("candidates", result.Candidates),
		zap.Int("escalated", len(result.Escalated)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *AlertService) escalateCandidate(ctx context.Context, alert models.ComplianceAlert, now time.Time, result *dto.EscalationResult) {
	// strictly older than the age limit
	if alert.Status != models.AlertStatusActive || now.Sub(alert.CreatedAt) <= s.cfg.EscalationAge {
		result.Skipped++
		return
	}
	if err := s.repo.Escalate(ctx, alert.ID, []models.AlertStatus{models.AlertStatusActive}, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to escalate alert", zap.String("alert_id", alert.ID), zap.Error(err))
		}
		result.Skipped++
		return
	}
	previous := alert
	applyEscalation(&alert, now)
	result.Escalated = append(result.Escalated, alert.ID)
	s.metrics.RecordAlertTransition(models.AlertStatusEscalated)
	s.emitAudit(ctx, systemActor, models.AuditActionAlertEscalate, alert.ID, previous, alert)
	s.dispatch(ctx, alert, "escalated")
}

// StartEscalationSweep runs ProcessEscalations on every tick until ctx is done.
func (s *AlertService) StartEscalationSweep(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ProcessEscalations(ctx); err != nil {
					if errors.Is(err, appErrors.ErrLockNotAcquired) {
						s.logger.Debug("escalation sweep skipped; lock held elsewhere")
						continue
					}
					s.logger.Warn("escalation sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// SyncFromScan runs the expiry scanner over the current population and raises an alert for every
// finding that does not already have an open alert for the same condition.
func (s *AlertService) SyncFromScan(ctx context.Context) (*dto.AlertSyncResult, *dto.ExpiryReport, error) {
	if s.snapshots == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnavailable, "compliance records are not available")
	}
	snapshot, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load compliance snapshot")
	}
	for _, skipErr := range snapshot.Skipped {
		s.logger.Warn("skipping undecodable compliance record", zap.Error(skipErr))
	}
	report := s.scanner.Scan(snapshot.Records, s.now())
	result, err := s.CreateAlertsFromReport(ctx, report)
	if err != nil {
		return nil, nil, err
	}
	return result, &report, nil
}

// CreateAlertsFromReport raises alerts for scanner findings without an open alert for the same condition.
func (s *AlertService) CreateAlertsFromReport(ctx context.Context, report dto.ExpiryReport) (*dto.AlertSyncResult, error) {
	keys, err := s.repo.ListOpenKeys(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list open alerts")
	}
	open := make(map[models.AlertKey]struct{}, len(keys))
	for _, key := range keys {
		open[key] = struct{}{}
	}

	candidates := alertsFromReport(report, s.cfg.BreachResponseDays)
	result := &dto.AlertSyncResult{
		Created:         []string{},
		FlaggedItems:    len(report.Flagged),
		ScannedFindings: len(candidates),
	}
	for i := range candidates {
		alert := candidates[i]
		key := alertKeyOf(alert)
		if _, exists := open[key]; exists {
			result.AlreadyOpen++
			continue
		}
		if err := s.repo.Create(ctx, &alert); err != nil {
			return result, appErrors.Internal(err, "failed to create alert from scan")
		}
		open[key] = struct{}{}
		result.Created = append(result.Created, alert.ID)
		s.afterCreate(ctx, &alert, systemActor)
	}
	return result, nil
}

func (s *AlertService) afterCreate(ctx context.Context, alert *models.ComplianceAlert, actorID string) {
	s.metrics.RecordAlertCreated(alert.Type, alert.Severity)
	s.emitAudit(ctx, actorID, models.AuditActionAlertCreate, alert.ID, nil, alert)
	s.dispatch(ctx, *alert, "created")
}

func (s *AlertService) dispatch(ctx context.Context, alert models.ComplianceAlert, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, alert, reason)
}

func (s *AlertService) emitAudit(ctx context.Context, actorID, action, alertID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "compliance_alert",
		ResourceID: &alertID,
		IPAddress:  "system",
		UserAgent:  "alert-service",
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

func applyEscalation(alert *models.ComplianceAlert, now time.Time) {
	alert.EscalationLevel++
	if alert.Status == models.AlertStatusActive {
		alert.Status = models.AlertStatusEscalated
	}
	alert.UpdatedAt = now
}

// transitionError maps a failed guarded update: a vanished precondition is a conflict.
func transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "alert changed concurrently; reload and retry")
	}
	return appErrors.Internal(err, message)
}

func alertKeyOf(alert models.ComplianceAlert) models.AlertKey {
	key := models.AlertKey{Category: alert.Category, Type: alert.Type}
	if alert.StudentID != nil {
		key.StudentID = *alert.StudentID
	}
	if alert.ItemKey != nil {
		key.ItemKey = *alert.ItemKey
	}
	return key
}

// alertsFromReport turns scanner findings into student alerts. Severity follows the item priority.
func alertsFromReport(report dto.ExpiryReport, breachResponseDays int) []models.ComplianceAlert {
	now := report.GeneratedAt
	alerts := make([]models.ComplianceAlert, 0, len(report.ExpiringDocuments)+len(report.ComplianceBreaches)+len(report.UpcomingDeadlines))
	newAlert := func(studentID string, category models.Category, itemKey string, alertType models.AlertType) models.ComplianceAlert {
		sid, key := studentID, itemKey
		return models.ComplianceAlert{
			StudentID:     &sid,
			DashboardType: models.DashboardStudent,
			Category:      category,
			ItemKey:       &key,
			Type:          alertType,
			Status:        models.AlertStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	for _, breach := range report.ComplianceBreaches {
		alert := newAlert(breach.StudentID, breach.Category, breach.ItemKey, models.AlertTypeComplianceBreach)
		alert.Title = fmt.Sprintf("%s expired", itemLabel(breach.Title, breach.ItemKey))
		alert.Message = fmt.Sprintf("%s for %s expired %d day(s) ago.", itemLabel(breach.Title, breach.ItemKey), breach.StudentName, breach.DaysBreach)
		alert.Severity = breachSeverity(breach.Priority)
		due := now.AddDate(0, 0, breachResponseDays)
		alert.DueDate = &due
		alerts = append(alerts, alert)
	}
	for _, doc := range report.ExpiringDocuments {
		alert := newAlert(doc.StudentID, doc.Category, doc.ItemKey, models.AlertTypeDocumentExpiring)
		alert.Title = fmt.Sprintf("%s expiring", itemLabel(doc.Title, doc.ItemKey))
		alert.Message = fmt.Sprintf("%s for %s expires in %d day(s).", itemLabel(doc.Title, doc.ItemKey), doc.StudentName, doc.DaysUntilExpiry)
		alert.Severity = severityForPriority(doc.Priority)
		expiry := doc.ExpiryDate
		alert.DueDate = &expiry
		alerts = append(alerts, alert)
	}
	for _, deadline := range report.UpcomingDeadlines {
		alert := newAlert(deadline.StudentID, deadline.Category, deadline.ItemKey, models.AlertTypeDeadlineUpcoming)
		alert.Title = fmt.Sprintf("%s due soon", itemLabel(deadline.Title, deadline.ItemKey))
		alert.Message = fmt.Sprintf("%s for %s is due in %d day(s).", itemLabel(deadline.Title, deadline.ItemKey), deadline.StudentName, deadline.DaysUntilDue)
		alert.Severity = deadlineSeverity(deadline.Priority)
		due := deadline.DueDate
		alert.DueDate = &due
		alerts = append(alerts, alert)
	}
	return alerts
}

func severityForPriority(priority models.Priority) models.AlertSeverity {
	switch priority {
	case models.PriorityCritical:
		return models.SeverityCritical
	case models.PriorityHigh:
		return models.SeverityHigh
	case models.PriorityLow:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

func breachSeverity(priority models.Priority) models.AlertSeverity {
	if priority == models.PriorityCritical || priority == models.PriorityHigh {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

// deadlineSeverity caps reminders at medium; they are not breaches yet.
func deadlineSeverity(priority models.Priority) models.AlertSeverity {
	if priority == models.PriorityCritical || priority == models.PriorityHigh {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

func itemLabel(title, key string) string {
	if title != "" {
		return title
	}
	return key
}
