package reports

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

type UserHotspot struct {
	AssignedTo    string `json:"assigned_to"`
	TotalIssues   int    `json:"total_issues"`
	SeriousIssues int    `json:"serious_issues"`
	IssueTypes    string `json:"issue_types"`
}

type HotspotReport struct {
	Dimension string            `json:"dimension"`
	Locations []LocationHotspot `json:"locations,omitempty"`
	Skus      []SkuHotspot      `json:"skus,omitempty"`
	Users     []UserHotspot     `json:"users,omitempty"`
}

// GetHotspots ranks the worst locations, skus, or operators by discrepancy
// activity over a trailing window.
func GetHotspots(ctx context.Context, dimension string, limit, days int) (*HotspotReport, error) {
	if dimension == "" {
		dimension = "location"
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if days <= 0 {
		days = 30
	}
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	dateFrom := time.Now().UTC().AddDate(0, 0, -days)
	report := &HotspotReport{Dimension: dimension}

	switch dimension {
	case "location":
		query := `
			SELECT location_code, COUNT(*) AS issue_count,
				SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END) AS critical_count,
				SUM(ABS(variance)) AS total_variance,
				GROUP_CONCAT(DISTINCT type ORDER BY type) AS issue_types
			FROM discrepancies
			WHERE created_at >= ?
			GROUP BY location_code
			ORDER BY critical_count DESC, issue_count DESC
			LIMIT ?`
		report.Locations = []LocationHotspot{}
		if err := db.WithContext(ctx).Raw(query, dateFrom, limit).Scan(&report.Locations).Error; err != nil {
			return nil, &utils.DependencyError{Dependency: "database", Err: err}
		}
	case "sku":
		query := `
			SELECT sku, COUNT(*) AS issue_count,
				SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END) AS critical_count,
				SUM(ABS(variance_value)) AS total_variance_value,
				GROUP_CONCAT(DISTINCT type ORDER BY type) AS issue_types
			FROM discrepancies
			WHERE created_at >= ?
			GROUP BY sku
			ORDER BY total_variance_value DESC, critical_count DESC
			LIMIT ?`
		report.Skus = []SkuHotspot{}
		if err := db.WithContext(ctx).Raw(query, dateFrom, limit).Scan(&report.Skus).Error; err != nil {
			return nil, &utils.DependencyError{Dependency: "database", Err: err}
		}
	case "user":
		query := `
			SELECT i.assigned_to AS assigned_to, COUNT(*) AS total_issues,
				SUM(CASE WHEN d.severity IN ('critical', 'high') THEN 1 ELSE 0 END) AS serious_issues,
				GROUP_CONCAT(DISTINCT d.type ORDER BY d.type) AS issue_types
			FROM discrepancies d
			JOIN investigations i ON d.id = i.discrepancy_id
			WHERE d.created_at >= ? AND i.assigned_to IS NOT NULL
			GROUP BY i.assigned_to
			ORDER BY serious_issues DESC
			LIMIT ?`
		report.Users = []UserHotspot{}
		if err := db.WithContext(ctx).Raw(query, dateFrom, limit).Scan(&report.Users).Error; err != nil {
			return nil, &utils.DependencyError{Dependency: "database", Err: err}
		}
	default:
		return nil, utils.NewValidationError("type", "must be location, sku, or user")
	}
	return report, nil
}
