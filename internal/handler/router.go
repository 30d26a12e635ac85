package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rto-compliance-api/internal/middleware"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// RouteDeps bundles the handlers and guards mounted under the API prefix.
type RouteDeps struct {
	Compliance *ComplianceHandler
	Alerts     *AlertHandler
	Dashboard  *DashboardHandler
	// Auth guards every route. Nil leaves the API open, which only tests should do.
	Auth  gin.HandlerFunc
	Audit func(action, resource string) gin.HandlerFunc
}

// complianceWriters may change records and drive alert lifecycles.
var complianceWriters = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleComplianceOfficer}

// RegisterRoutes mounts the compliance API on group.
func RegisterRoutes(group *gin.RouterGroup, deps RouteDeps) {
	if deps.Auth != nil {
		group.Use(deps.Auth)
	}
	write := middleware.RequireRoles(complianceWriters...)
	audit := deps.Audit
	if audit == nil {
		audit = func(string, string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	}

	if deps.Dashboard != nil {
		dash := group.Group("/dashboard")
		dash.GET("/stats", deps.Dashboard.Stats)
		dash.GET("/traffic-light", deps.Dashboard.TrafficLight)
		dash.GET("/heatmap", deps.Dashboard.Heatmap)
		dash.POST("/heatmap/snapshots", write, audit(models.AuditActionHeatmapSnapshot, "heatmap_snapshot"), deps.Dashboard.CaptureSnapshot)
	}

	if deps.Compliance != nil {
		compliance := group.Group("/compliance")
		compliance.GET("/expiry-report", deps.Compliance.ExpiryReport)
		students := compliance.Group("/students")
		students.GET("", deps.Compliance.List)
		students.POST("", write, deps.Compliance.Create)
		students.GET("/:studentId", deps.Compliance.Get)
		students.POST("/:studentId/bulk-update", write, deps.Compliance.BulkUpdate)
		students.PATCH("/:studentId/categories/:category/items/:itemKey", write, deps.Compliance.UpdateItem)
		students.POST("/:studentId/categories/:category/items/:itemKey/verify", write, deps.Compliance.VerifyDocument)
	}

	if deps.Alerts != nil {
		alerts := group.Group("/alerts")
		alerts.GET("", deps.Alerts.List)
		alerts.POST("", write, deps.Alerts.Create)
		alerts.POST("/escalations", write, audit(models.AuditActionEscalationSweep, "compliance_alert"), deps.Alerts.ProcessEscalations)
		alerts.POST("/sync", write, audit(models.AuditActionAlertSync, "compliance_alert"), deps.Alerts.Sync)
		alerts.GET("/:id", deps.Alerts.Get)
		alerts.POST("/:id/acknowledge", write, deps.Alerts.Acknowledge)
		alerts.POST("/:id/resolve", write, deps.Alerts.Resolve)
		alerts.POST("/:id/escalate", write, deps.Alerts.Escalate)
	}
}
