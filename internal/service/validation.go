package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// registerComplianceValidations adds the enum tags used by compliance and alert payloads.
func registerComplianceValidations(validate *validator.Validate) {
	validate.RegisterValidation("item_status", func(fl validator.FieldLevel) bool {
		return models.ItemStatus(fl.Field().String()).IsValid()
	})
	validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.Priority(fl.Field().String()).IsValid()
	})
	validate.RegisterValidation("verification_status", func(fl validator.FieldLevel) bool {
		return models.VerificationStatus(fl.Field().String()).IsValid()
	})
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).IsValid()
	})
	validate.RegisterValidation("dashboard_type", func(fl validator.FieldLevel) bool {
		return models.DashboardType(fl.Field().String()).IsValid()
	})
	validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return models.AlertSeverity(fl.Field().String()).IsValid()
	})
}
