package rootcause

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

type LocationPattern struct {
	LocationCode string  `json:"location_code"`
	Type         string  `json:"type"`
	Occurrences  int     `json:"occurrences"`
	AvgVariance  float64 `json:"avg_variance"`
	AffectedSkus string  `json:"affected_skus"`
}

type SkuPattern struct {
	Sku           string  `json:"sku"`
	Type          string  `json:"type"`
	Occurrences   int     `json:"occurrences"`
	LocationCount int     `json:"location_count"`
	AvgVariance   float64 `json:"avg_variance"`
}

type TimePattern struct {
	Hour        int    `json:"hour"`
	Shift       string `json:"shift"`
	Type        string `json:"type"`
	Occurrences int    `json:"occurrences"`
}

type PatternReport struct {
	LocationPatterns []LocationPattern `json:"location_patterns"`
	SkuPatterns      []SkuPattern      `json:"sku_patterns"`
	TimePatterns     []TimePattern     `json:"time_patterns"`
}

// FindPatterns mines recurring discrepancy patterns over a trailing window:
// repeated location+type, sku spread across locations, and hour-of-day shift
// clusters. Groups below minOccurrences are dropped.
func FindPatterns(ctx context.Context, days, minOccurrences int) (*PatternReport, error) {
	if days <= 0 {
		days = 30
	}
	if minOccurrences <= 0 {
		minOccurrences = 3
	}
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	dateFrom := time.Now().UTC().AddDate(0, 0, -days)

	report := &PatternReport{
		LocationPatterns: []LocationPattern{},
		SkuPatterns:      []SkuPattern{},
		TimePatterns:     []TimePattern{},
	}

	locationQuery := `
		SELECT location_code, type, COUNT(*) AS occurrences,
			AVG(variance) AS avg_variance,
			GROUP_CONCAT(DISTINCT sku ORDER BY sku) AS affected_skus
		FROM discrepancies
		WHERE created_at >= ?
		GROUP BY location_code, type
		HAVING COUNT(*) >= ?
		ORDER BY occurrences DESC`
	if err := db.WithContext(ctx).Raw(locationQuery, dateFrom, minOccurrences).Scan(&report.LocationPatterns).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	skuQuery := `
		SELECT sku, type, COUNT(*) AS occurrences,
			COUNT(DISTINCT location_code) AS location_count,
			AVG(variance) AS avg_variance
		FROM discrepancies
		WHERE created_at >= ?
		GROUP BY sku, type
		HAVING COUNT(*) >= ?
		ORDER BY occurrences DESC`
	if err := db.WithContext(ctx).Raw(skuQuery, dateFrom, minOccurrences).Scan(&report.SkuPatterns).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	timeQuery := `
		SELECT HOUR(detected_at) AS hour,
			CASE
				WHEN HOUR(detected_at) BETWEEN 6 AND 13 THEN 'Day'
				WHEN HOUR(detected_at) BETWEEN 14 AND 21 THEN 'Evening'
				ELSE 'Night'
			END AS shift,
			type, COUNT(*) AS occurrences
		FROM discrepancies
		WHERE created_at >= ?
		GROUP BY HOUR(detected_at), shift, type
		HAVING COUNT(*) >= ?
		ORDER BY occurrences DESC`
	if err := db.WithContext(ctx).Raw(timeQuery, dateFrom, minOccurrences).Scan(&report.TimePatterns).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}

	return report, nil
}

type Correlation struct {
	Item1         string  `json:"item1"`
	Item2         string  `json:"item2"`
	CoOccurrences int     `json:"co_occurrences"`
	AvgHoursApart float64 `json:"avg_hours_apart"`
}

// FindCorrelations reports pairs of locations or skus whose discrepancies
// tend to surface within 24 hours of each other.
func FindCorrelations(ctx context.Context, dimension string) ([]Correlation, error) {
	var column string
	switch dimension {
	case "", "location":
		column = "location_code"
	case "sku":
		column = "sku"
	default:
		return nil, utils.NewValidationError("dimension", "must be location or sku")
	}
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}

	// column comes from the whitelist above, never from the caller directly.
	query := `
		SELECT d1.` + column + ` AS item1, d2.` + column + ` AS item2,
			COUNT(*) AS co_occurrences,
			AVG(ABS(TIMESTAMPDIFF(SECOND, d1.detected_at, d2.detected_at)) / 3600) AS avg_hours_apart
		FROM discrepancies d1
		JOIN discrepancies d2 ON d1.id < d2.id
		WHERE ABS(TIMESTAMPDIFF(SECOND, d1.detected_at, d2.detected_at)) < 86400
			AND d1.` + column + ` != d2.` + column + `
		GROUP BY item1, item2
		HAVING COUNT(*) >= 3
		ORDER BY co_occurrences DESC
		LIMIT 20`

	correlations := []Correlation{}
	if err := db.WithContext(ctx).Raw(query).Scan(&correlations).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return correlations, nil
}
