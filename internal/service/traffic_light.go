package service

import (
	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// defaultTrafficLightThreshold is the active alert count that turns a light yellow.
const defaultTrafficLightThreshold = 5

// ResolveTrafficLight maps alert counts to a colour. Any critical alert wins.
func ResolveTrafficLight(criticalCount, activeCount, threshold int) dto.TrafficLightColor {
	if threshold <= 0 {
		threshold = defaultTrafficLightThreshold
	}
	switch {
	case criticalCount > 0:
		return dto.TrafficRed
	case activeCount >= threshold:
		return dto.TrafficYellow
	default:
		return dto.TrafficGreen
	}
}

// BuildTrafficLights computes one light per dashboard type from the alert population.
// Active and escalated alerts both count as needing attention; acknowledged and resolved do not.
// A light's ActiveAlerts therefore includes escalated alerts, unlike AlertSummary.TotalActive in the dashboard stats.
func BuildTrafficLights(alerts []models.ComplianceAlert, threshold int) []dto.TrafficLight {
	type counts struct{ critical, active int }
	byType := make(map[models.DashboardType]*counts, len(models.AllDashboardTypes))
	for _, t := range models.AllDashboardTypes {
		byType[t] = &counts{}
	}
	for _, alert := range alerts {
		if alert.Status != models.AlertStatusActive && alert.Status != models.AlertStatusEscalated {
			continue
		}
		c, ok := byType[alert.DashboardType]
		if !ok {
			continue
		}
		c.active++
		if alert.Severity == models.SeverityCritical {
			c.critical++
		}
	}

	lights := make([]dto.TrafficLight, 0, len(models.AllDashboardTypes))
	for _, t := range models.AllDashboardTypes {
		c := byType[t]
		lights = append(lights, dto.TrafficLight{
			EntityType:     t,
			Color:          ResolveTrafficLight(c.critical, c.active, threshold),
			CriticalAlerts: c.critical,
			ActiveAlerts:   c.active,
		})
	}
	return lights
}
