package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

func TestRenderYAMLUsesFieldTags(t *testing.T) {
	var buf bytes.Buffer
	result := dto.EscalationResult{
		ProcessedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Candidates:  2,
		Escalated:   []string{"a-1"},
		Skipped:     1,
	}
	require.NoError(t, render(&buf, "yaml", result))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["candidates"])
	assert.Equal(t, []interface{}{"a-1"}, decoded["escalated"])
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", tokenOutput{Token: "t", ExpiresAt: "2024-03-01T00:00:00Z"}))
	assert.Contains(t, buf.String(), `"expiresAt": "2024-03-01T00:00:00Z"`)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "xml", struct{}{}))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), Version)
}

func TestRenderCSVFlattensExpiryReport(t *testing.T) {
	due := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	report := &dto.ExpiryReport{
		ComplianceBreaches: []dto.ComplianceBreach{{
			StudentID:  "s-1",
			Category:   models.CategoryHealthSafety,
			ItemKey:    "first_aid",
			Priority:   models.PriorityHigh,
			ExpiryDate: due,
			DaysBreach: 4,
		}},
		Flagged: []dto.FlaggedItem{{StudentID: "s-2", ItemKey: "visa", Reason: "malformed expiry date"}},
	}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "csv", report))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "kind,studentId,studentName,category,itemKey,priority,date,days,reason", lines[0])
	assert.Equal(t, "breach,s-1,,health_safety,first_aid,high,2024-03-10,4,", lines[1])
	assert.Equal(t, "flagged,s-2,,,visa,,,,malformed expiry date", lines[2])
}

func TestRenderCSVOnlyForScan(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "csv", tokenOutput{}))
}
