package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/pkg/export"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
)

var expiryHeaders = []string{"kind", "studentId", "studentName", "category", "itemKey", "priority", "date", "days", "reason"}

func render(w io.Writer, format string, value interface{}) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case formatCSV:
		report, ok := value.(*dto.ExpiryReport)
		if !ok {
			return fmt.Errorf("csv output is only available for scan")
		}
		return export.WriteCSV(w, expiryDataset(report))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// expiryDataset flattens a scan into one row per finding.
func expiryDataset(report *dto.ExpiryReport) export.Dataset {
	data := export.Dataset{Headers: expiryHeaders}
	for _, doc := range report.ComplianceBreaches {
		data.Append(map[string]string{
			"kind":        "breach",
			"studentId":   doc.StudentID,
			"studentName": doc.StudentName,
			"category":    string(doc.Category),
			"itemKey":     doc.ItemKey,
			"priority":    string(doc.Priority),
			"date":        doc.ExpiryDate.Format(time.DateOnly),
			"days":        strconv.Itoa(doc.DaysBreach),
		})
	}
	for _, doc := range report.ExpiringDocuments {
		data.Append(map[string]string{
			"kind":        "expiring",
			"studentId":   doc.StudentID,
			"studentName": doc.StudentName,
			"category":    string(doc.Category),
			"itemKey":     doc.ItemKey,
			"priority":    string(doc.Priority),
			"date":        doc.ExpiryDate.Format(time.DateOnly),
			"days":        strconv.Itoa(doc.DaysUntilExpiry),
		})
	}
	for _, item := range report.UpcomingDeadlines {
		data.Append(map[string]string{
			"kind":        "deadline",
			"studentId":   item.StudentID,
			"studentName": item.StudentName,
			"category":    string(item.Category),
			"itemKey":     item.ItemKey,
			"priority":    string(item.Priority),
			"date":        item.DueDate.Format(time.DateOnly),
			"days":        strconv.Itoa(item.DaysUntilDue),
		})
	}
	for _, item := range report.Flagged {
		data.Append(map[string]string{
			"kind":      "flagged",
			"studentId": item.StudentID,
			"category":  string(item.Category),
			"itemKey":   item.ItemKey,
			"reason":    item.Reason,
		})
	}
	return data
}
