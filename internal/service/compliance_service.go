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
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

type complianceStore interface {
	List(ctx context.Context, filter models.StudentComplianceFilter) ([]models.StudentComplianceRecord, int, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.StudentComplianceRecord, error)
	Create(ctx context.Context, record *models.StudentComplianceRecord) error
	UpdateWithLock(ctx context.Context, studentID string, mutate func(*models.StudentComplianceRecord) error) (*models.StudentComplianceRecord, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ComplianceServiceParams groups collaborators for ComplianceService.
type ComplianceServiceParams struct {
	Repo      complianceStore
	Audit     auditLogger
	Validator *validator.Validate
	Metrics   *MetricsService
	Logger    *zap.Logger
	Clock     func() time.Time
}

// ComplianceService owns student compliance records and keeps their derived fields consistent.
type ComplianceService struct {
	repo      complianceStore
	audit     auditLogger
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewComplianceService constructs the service.
func NewComplianceService(params ComplianceServiceParams) *ComplianceService {
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
	return &ComplianceService{
		repo:      params.Repo,
		audit:     params.Audit,
		validator: validate,
		metrics:   params.Metrics,
		logger:    logger,
		now:       clock,
	}
}

// List returns a page of records.
func (s *ComplianceService) List(ctx context.Context, query dto.ComplianceRecordQuery) ([]models.StudentComplianceRecord, *models.Pagination, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported compliance status filter")
	}
	filter := models.StudentComplianceFilter{
		Status:     query.Status,
		RTOID:      strings.TrimSpace(query.RTOID),
		ProviderID: strings.TrimSpace(query.ProviderID),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list compliance records")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns the record for a student.
func (s *ComplianceService) Get(ctx context.Context, studentID string) (*models.StudentComplianceRecord, error) {
	record, err := s.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, mapStoreError(err, "failed to load compliance record")
	}
	return record, nil
}

// CreateRecord opens a record with every catalogued item seeded from the membership table.
func (s *ComplianceService) CreateRecord(ctx context.Context, req dto.CreateComplianceRecordRequest, actorID string) (*models.StudentComplianceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := validatePlacement(req.CurrentPlacement); err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(req.StudentID)
	if _, err := s.repo.GetByStudentID(ctx, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "compliance record already exists for student")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check existing compliance record")
	}

	record := &models.StudentComplianceRecord{
		StudentID:        studentID,
		StudentName:      strings.TrimSpace(req.StudentName),
		RTOID:            optionalString(req.RTOID),
		ProviderID:       optionalString(req.ProviderID),
		CourseCode:       optionalString(req.CourseCode),
		Categories:       seedCategories(),
		CurrentPlacement: req.CurrentPlacement,
		Version:          1,
	}
	now := s.now().UTC()
	Recompute(record, actorID, now)
	record.CreatedAt = now
	if err := verifyRecordInvariants(record); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to create compliance record")
	}
	s.metrics.ObserveComplianceScore(record.OverallComplianceScore)
	s.emitAudit(ctx, actorID, models.AuditActionRecordCreate, record.StudentID, nil, record)
	return record, nil
}

// UpdateItem patches one item and recomputes the record under the row lock.
func (s *ComplianceService) UpdateItem(ctx context.Context, studentID string, category models.Category, itemKey string, req dto.UpdateComplianceItemRequest, actorID string) (*models.StudentComplianceRecord, error) {
	def, err := resolveItemAddress(category, itemKey)
	if err != nil {
		return nil, err
	}
	if err := s.validatePatch(req); err != nil {
		return nil, err
	}

	var before, after models.ComplianceItem
	record, err := s.repo.UpdateWithLock(ctx, studentID, func(record *models.StudentComplianceRecord) error {
		now := s.now().UTC()
		items, err := record.Categories.Items(category)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		item := itemOrDefault(items, def)
		before = item
		if err := applyItemPatch(&item, req, now); err != nil {
			return err
		}
		items[def.Key] = item
		after = item
		Recompute(record, actorID, now)
		return verifyRecordInvariants(record)
	})
	if err != nil {
		return nil, mapStoreError(err, "failed to update compliance item")
	}
	s.metrics.ObserveComplianceScore(record.OverallComplianceScore)
	s.emitAudit(ctx, actorID, models.AuditActionItemUpdate, record.StudentID, itemChange(category, def.Key, before), itemChange(category, def.Key, after))
	return record, nil
}

// VerifyDocument records a verifier decision; the item status follows the decision.
func (s *ComplianceService) VerifyDocument(ctx context.Context, studentID string, category models.Category, itemKey string, req dto.VerifyDocumentRequest, actorID string) (*models.StudentComplianceRecord, error) {
	def, err := resolveItemAddress(category, itemKey)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	var before, after models.ComplianceItem
	record, err := s.repo.UpdateWithLock(ctx, studentID, func(record *models.StudentComplianceRecord) error {
		now := s.now().UTC()
		items, err := record.Categories.Items(category)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		item := itemOrDefault(items, def)
		before = item
		item.VerificationStatus = req.Decision
		switch req.Decision {
		case models.VerificationApproved:
			item.Status = models.ItemStatusCompliant
		case models.VerificationRejected:
			item.Status = models.ItemStatusNonCompliant
		case models.VerificationPending:
			item.Status = models.ItemStatusPending
		}
		verifier := actorID
		item.VerifiedBy = &verifier
		item.VerifiedAt = &now
		item.UpdatedAt = &now
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			item.Notes = &notes
		}
		items[def.Key] = item
		after = item
		Recompute(record, actorID, now)
		return verifyRecordInvariants(record)
	})
	if err != nil {
		return nil, mapStoreError(err, "failed to verify document")
	}
	s.metrics.ObserveComplianceScore(record.OverallComplianceScore)
	s.emitAudit(ctx, actorID, models.AuditActionDocumentVerify, record.StudentID, itemChange(category, def.Key, before), itemChange(category, def.Key, after))
	return record, nil
}

// BulkUpdate applies several patches atomically and recomputes once. Any invalid entry rejects the whole batch.
func (s *ComplianceService) BulkUpdate(ctx context.Context, studentID string, req dto.BulkUpdateRequest, actorID string) (*models.StudentComplianceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	defs := make([]models.ItemDefinition, len(req.Updates))
	for i, update := range req.Updates {
		def, err := resolveItemAddress(update.Category, update.ItemKey)
		if err != nil {
			return nil, err
		}
		if hasDerivedFields(update.Patch) {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, "overall compliance score and status are derived and cannot be set")
		}
		defs[i] = def
	}

	changes := make([]map[string]interface{}, 0, len(req.Updates))
	record, err := s.repo.UpdateWithLock(ctx, studentID, func(record *models.StudentComplianceRecord) error {
		now := s.now().UTC()
		for i, update := range req.Updates {
			items, err := record.Categories.Items(update.Category)
			if err != nil {
				return appErrors.Clone(appErrors.ErrValidation, err.Error())
			}
			item := itemOrDefault(items, defs[i])
			if err := applyItemPatch(&item, update.Patch, now); err != nil {
				return appErrors.Clone(appErrors.FromError(err), fmt.Sprintf("update %d (%s/%s): %s", i, update.Category, update.ItemKey, appErrors.FromError(err).Message))
			}
			items[defs[i].Key] = item
			changes = append(changes, itemChange(update.Category, defs[i].Key, item))
		}
		Recompute(record, actorID, now)
		return verifyRecordInvariants(record)
	})
	if err != nil {
		return nil, mapStoreError(err, "failed to apply bulk compliance update")
	}
	s.metrics.ObserveComplianceScore(record.OverallComplianceScore)
	s.emitAudit(ctx, actorID, models.AuditActionBulkUpdate, record.StudentID, nil, changes)
	return record, nil
}

func (s *ComplianceService) validatePatch(req dto.UpdateComplianceItemRequest) error {
	if hasDerivedFields(req) {
		return appErrors.Clone(appErrors.ErrInvariantViolation, "overall compliance score and status are derived and cannot be set")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

func (s *ComplianceService) emitAudit(ctx context.Context, actorID, action, studentID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "student_compliance_record",
		ResourceID: &studentID,
		IPAddress:  "system",
		UserAgent:  "compliance-service",
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

func hasDerivedFields(req dto.UpdateComplianceItemRequest) bool {
	return len(req.OverallComplianceScore) > 0 || len(req.OverallComplianceStatus) > 0
}

// resolveItemAddress checks the category and looks the item up in the membership table.
func resolveItemAddress(category models.Category, itemKey string) (models.ItemDefinition, error) {
	if !category.IsValid() {
		return models.ItemDefinition{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown compliance category %q", category))
	}
	def, ok := models.LookupItemDefinition(category, strings.TrimSpace(itemKey))
	if !ok {
		return models.ItemDefinition{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %q is not part of category %s", itemKey, category))
	}
	return def, nil
}

// itemOrDefault returns the stored item or a fresh one built from its definition.
func itemOrDefault(items models.ComplianceCategory, def models.ItemDefinition) models.ComplianceItem {
	if item, ok := items[def.Key]; ok {
		return item
	}
	return newItemFromDefinition(def)
}

func newItemFromDefinition(def models.ItemDefinition) models.ComplianceItem {
	item := models.ComplianceItem{
		Title:              def.Title,
		Required:           def.Required,
		Priority:           def.Priority,
		VerificationStatus: models.VerificationPending,
	}
	item.Normalize()
	return item
}

func seedCategories() models.ComplianceCategories {
	categories := models.ComplianceCategories{}
	for _, category := range models.AllCategories {
		items, _ := categories.Items(category)
		for _, def := range models.CategoryItemKeys[category] {
			items[def.Key] = newItemFromDefinition(def)
		}
	}
	return categories
}

// applyItemPatch merges a patch into item and keeps verification consistent with the new status.
func applyItemPatch(item *models.ComplianceItem, req dto.UpdateComplianceItemRequest, now time.Time) error {
	if req.Required != nil {
		item.Required = *req.Required
		if item.Required && req.Status == nil && item.Status == models.ItemStatusNotRequired {
			item.Status = models.ItemStatusPending
		}
	}
	if req.Status != nil {
		item.Status = *req.Status
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	}
	if req.IssueDate != nil {
		issued := req.IssueDate.UTC()
		item.IssueDate = &issued
	}
	if req.ExpiryDate != nil {
		expiry := req.ExpiryDate.UTC()
		item.ExpiryDate = &expiry
	}
	if req.NextReminderDue != nil {
		due := req.NextReminderDue.UTC()
		item.NextReminderDue = &due
	}
	if req.DocumentURL != nil {
		item.DocumentURL = optionalString(*req.DocumentURL)
	}
	if req.Notes != nil {
		item.Notes = optionalString(*req.Notes)
	}
	if item.IssueDate != nil && item.ExpiryDate != nil && item.ExpiryDate.Before(*item.IssueDate) {
		return appErrors.Clone(appErrors.ErrValidation, "expiryDate must not precede issueDate")
	}
	if item.Required && item.Status == models.ItemStatusNotRequired {
		// a required item cannot be waived by status alone
		return appErrors.Clone(appErrors.ErrValidation, "required items cannot be marked not_required")
	}

	switch {
	case item.VerificationStatus == models.VerificationApproved && item.Status != models.ItemStatusCompliant,
		item.VerificationStatus == models.VerificationRejected && item.Status != models.ItemStatusNonCompliant:
		item.VerificationStatus = models.VerificationPending
	}
	item.Normalize()
	item.UpdatedAt = &now
	return nil
}

func validatePlacement(placement *models.Placement) error {
	if placement == nil {
		return nil
	}
	if placement.HoursRequired < 0 || placement.HoursCompleted < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "placement hours must not be negative")
	}
	switch placement.Status {
	case models.PlacementActive, models.PlacementCompleted, models.PlacementSuspended, models.PlacementTerminated, models.PlacementPending:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported placement status")
	}
	if placement.StartDate != nil && placement.EndDate != nil && placement.EndDate.Before(*placement.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "placement endDate must not precede startDate")
	}
	return nil
}

func itemChange(category models.Category, key string, item models.ComplianceItem) map[string]interface{} {
	return map[string]interface{}{"category": category, "itemKey": key, "item": item}
}

// mapStoreError converts repository failures into typed errors, passing typed errors through.
func mapStoreError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
