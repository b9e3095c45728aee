package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	LOW_SEVERITY    = "low"
	MEDIUM_SEVERITY = "medium"
	HIGH_SEVERITY   = "high"

	MAX_INCIDENT_DESCRIPTION_LENGTH = 500

	// Incidents older than this stop showing up on the community map
	INCIDENT_WINDOW_DAYS = 30
)

var IncidentSeverityNameMap = map[string]bool{
	LOW_SEVERITY:    true,
	MEDIUM_SEVERITY: true,
	HIGH_SEVERITY:   true,
}

// IncidentReport is a crowd-sourced report for the community
// map/heatmap. Append-only.
type IncidentReport struct {
	BaseModel
	UserID      uint    `json:"user_id" gorm:"not null"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description" gorm:"not null"`
	Severity    string  `json:"severity" gorm:"default:low"`
}

func CreateIncidentReport(report *IncidentReport) error {
	report.Description = strings.TrimSpace(report.Description)

	if report.Description == "" {
		return errors.Wrap(ErrValidation, "description is required")
	}

	if len(report.Description) > MAX_INCIDENT_DESCRIPTION_LENGTH {
		return errors.Wrapf(ErrValidation,
			"description must be at most %v characters", MAX_INCIDENT_DESCRIPTION_LENGTH)
	}

	if !IncidentSeverityNameMap[report.Severity] {
		return errors.Wrapf(ErrValidation, "unknown severity %q", report.Severity)
	}

	return db.Create(report).Error
}

// RecentIncidentReports returns reports created within the rolling
// public window, newest first.
func RecentIncidentReports(now time.Time, page int) ([]IncidentReport, *Paging, error) {
	var total int64
	reports := []IncidentReport{}
	cutoff := now.AddDate(0, 0, -INCIDENT_WINDOW_DAYS)

	err := db.Model(&IncidentReport{}).Where("created_at >= ?", cutoff).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Order("incident_reports.id desc").
		Find(&reports, "created_at >= ?", cutoff).Error
	if err != nil {
		return nil, nil, err
	}

	return reports, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}
