package reports

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
	_ "github.com/go-sql-driver/mysql"
)

type TruthSummary struct {
	AccuracyScore      float64 `json:"accuracy_score"`
	AvgVariancePercent float64 `json:"avg_variance_percent"`
	OpenDiscrepancies  int     `json:"open_discrepancies"`
	CriticalIssues     int     `json:"critical_issues"`
}

type DiscrepancyBreakdown struct {
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Count     int    `json:"count"`
	OpenCount int    `json:"open_count"`
}

type AdjustmentTrend struct {
	Date                string  `json:"date"`
	PositiveAdjustments float64 `json:"positive_adjustments"`
	NegativeAdjustments float64 `json:"negative_adjustments"`
	Count               int     `json:"count"`
}

type LocationHotspot struct {
	LocationCode  string  `json:"location_code"`
	IssueCount    int     `json:"issue_count"`
	CriticalCount int     `json:"critical_count"`
	IssueTypes    string  `json:"issue_types"`
	TotalVariance float64 `json:"total_variance,omitempty"`
}

type SkuHotspot struct {
	Sku                string  `json:"sku"`
	IssueCount         int     `json:"issue_count"`
	CriticalCount      int     `json:"critical_count"`
	TotalVarianceValue float64 `json:"total_variance_value"`
	IssueTypes         string  `json:"issue_types,omitempty"`
}

type TruthDashboard struct {
	Summary              TruthSummary           `json:"summary"`
	DiscrepancyBreakdown []DiscrepancyBreakdown `json:"discrepancy_breakdown"`
	AdjustmentTrends     []AdjustmentTrend      `json:"adjustment_trends"`
	Hotspots             struct {
		Locations []LocationHotspot `json:"locations"`
		Skus      []SkuHotspot      `json:"skus"`
	} `json:"hotspots"`
}

// GetInventoryTruthDashboard builds the dashboard summary over a date range,
// defaulting to the trailing 30 days. Results are cached briefly when the
// report cache is enabled.
func GetInventoryTruthDashboard(ctx context.Context, dateFrom, dateTo *time.Time) (*TruthDashboard, error) {
	started := time.Now()
	to := time.Now().UTC()
	if dateTo != nil {
		to = *dateTo
	}
	from := to.AddDate(0, 0, -30)
	if dateFrom != nil {
		from = *dateFrom
	}

	cacheKey := fmt.Sprintf("report:truth_dashboard:%d:%d", from.Unix(), to.Unix())
	if reportCacheEnabled() {
		var cached TruthDashboard
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}

	dashboard := &TruthDashboard{
		DiscrepancyBreakdown: []DiscrepancyBreakdown{},
		AdjustmentTrends:     []AdjustmentTrend{},
	}
	dashboard.Hotspots.Locations = []LocationHotspot{}
	dashboard.Hotspots.Skus = []SkuHotspot{}

	breakdownQuery := `
		SELECT type, severity, COUNT(*) AS count,
			SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END) AS open_count
		FROM discrepancies
		WHERE created_at BETWEEN ? AND ?
		GROUP BY type, severity`
	if err := db.WithContext(ctx).Raw(breakdownQuery, from, to).Scan(&dashboard.DiscrepancyBreakdown).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	// Accuracy is the share of locations whose aggregate count variance stays
	// inside one percent.
	var accuracy struct {
		TotalLocations int     `json:"total_locations"`
		AccurateCount  int     `json:"accurate_count"`
		AvgVariance    float64 `json:"avg_variance"`
	}
	accuracyQuery := `
		SELECT COUNT(*) AS total_locations,
			SUM(CASE WHEN ABS(variance_percent) <= 1 THEN 1 ELSE 0 END) AS accurate_count,
			AVG(ABS(variance_percent)) AS avg_variance
		FROM (
			SELECT location_code,
				SUM(counted_qty - system_qty) AS variance,
				CASE WHEN SUM(system_qty) != 0
					THEN (SUM(counted_qty - system_qty) / SUM(system_qty)) * 100
					ELSE 0
				END AS variance_percent
			FROM cycle_count_snapshots
			WHERE count_date BETWEEN ? AND ?
			GROUP BY location_code
		) AS location_accuracy`
	if err := db.WithContext(ctx).Raw(accuracyQuery, from, to).Scan(&accuracy).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	trendQuery := `
		SELECT DATE(adjustment_date) AS date,
			SUM(CASE WHEN adjustment_qty > 0 THEN adjustment_qty ELSE 0 END) AS positive_adjustments,
			SUM(CASE WHEN adjustment_qty < 0 THEN ABS(adjustment_qty) ELSE 0 END) AS negative_adjustments,
			COUNT(*) AS count
		FROM adjustment_snapshots
		WHERE adjustment_date BETWEEN ? AND ?
		GROUP BY DATE(adjustment_date)
		ORDER BY date DESC
		LIMIT 30`
	if err := db.WithContext(ctx).Raw(trendQuery, from, to).Scan(&dashboard.AdjustmentTrends).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	locationQuery := `
		SELECT location_code, COUNT(*) AS issue_count,
			SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END) AS critical_count,
			GROUP_CONCAT(DISTINCT type ORDER BY type) AS issue_types
		FROM discrepancies
		WHERE status = 'OPEN'
		GROUP BY location_code
		ORDER BY critical_count DESC, issue_count DESC
		LIMIT 10`
	if err := db.WithContext(ctx).Raw(locationQuery).Scan(&dashboard.Hotspots.Locations).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	skuQuery := `
		SELECT sku, COUNT(*) AS issue_count,
			SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END) AS critical_count,
			SUM(ABS(variance_value)) AS total_variance_value
		FROM discrepancies
		WHERE status = 'OPEN'
		GROUP BY sku
		ORDER BY total_variance_value DESC, issue_count DESC
		LIMIT 10`
	if err := db.WithContext(ctx).Raw(skuQuery).Scan(&dashboard.Hotspots.Skus).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	accuracyScore := 0.0
	if accuracy.TotalLocations > 0 {
		accuracyScore = float64(accuracy.AccurateCount) / float64(accuracy.TotalLocations) * 100
	}
	openTotal, criticalOpen := 0, 0
	for _, b := range dashboard.DiscrepancyBreakdown {
		openTotal += b.OpenCount
		if b.Severity == "critical" {
			criticalOpen += b.OpenCount
		}
	}
	dashboard.Summary = TruthSummary{
		AccuracyScore:      math.Round(accuracyScore*10) / 10,
		AvgVariancePercent: math.Round(accuracy.AvgVariance*100) / 100,
		OpenDiscrepancies:  openTotal,
		CriticalIssues:     criticalOpen,
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, dashboard, reportCacheTTL())
	}
	logSlowReport(ctx, "truth_dashboard", started, map[string]any{"from": from, "to": to})
	return dashboard, nil
}
