package rootcause

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

type AnalysisPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type OperatorMetrics struct {
	TotalAdjustments  int             `json:"total_adjustments"`
	TotalAdjusted     decimal.Decimal `json:"total_adjusted"`
	UniqueLocations   int             `json:"unique_locations"`
	UniqueSkus        int             `json:"unique_skus"`
	AvgAdjustmentSize decimal.Decimal `json:"avg_adjustment_size"`
}

type OperatorAnalysis struct {
	UserId              int                         `json:"user_id"`
	Period              AnalysisPeriod              `json:"period"`
	Metrics             OperatorMetrics             `json:"metrics"`
	AdjustmentsByReason map[string]int              `json:"adjustments_by_reason"`
	RelatedDiscrepancies int64                      `json:"related_discrepancies"`
	RecentAdjustments   []models.AdjustmentSnapshot `json:"recent_adjustments"`
}

// AnalyzeOperator summarizes one operator's adjustment activity over a
// trailing window and counts discrepancies at the locations they touched.
func AnalyzeOperator(ctx context.Context, userID, days int) (*OperatorAnalysis, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	window := models.TimeWindow{From: now.AddDate(0, 0, -days), To: now}

	adjustments, err := models.QueryAdjustmentsByUser(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	locations := make(map[string]bool)
	skus := make(map[string]bool)
	byReason := make(map[string]int)
	totalAdjusted := decimal.Zero
	for _, a := range adjustments {
		locations[a.LocationCode] = true
		skus[a.Sku] = true
		byReason[a.Reason]++
		totalAdjusted = totalAdjusted.Add(a.AdjustmentQty.Abs())
	}

	var related int64
	if len(locations) > 0 {
		locationList := make([]string, 0, len(locations))
		for loc := range locations {
			locationList = append(locationList, loc)
		}
		related, err = models.CountDiscrepanciesAtLocations(ctx, locationList, window.From)
		if err != nil {
			return nil, err
		}
	}

	avgSize := decimal.Zero
	if len(adjustments) > 0 {
		avgSize = totalAdjusted.Div(decimal.NewFromInt(int64(len(adjustments))))
	}

	recent := newestFirstAdjustments(adjustments)
	if len(recent) > 20 {
		recent = recent[:20]
	}
	return &OperatorAnalysis{
		UserId: userID,
		Period: AnalysisPeriod{From: window.From, To: window.To},
		Metrics: OperatorMetrics{
			TotalAdjustments:  len(adjustments),
			TotalAdjusted:     totalAdjusted,
			UniqueLocations:   len(locations),
			UniqueSkus:        len(skus),
			AvgAdjustmentSize: avgSize,
		},
		AdjustmentsByReason:  byReason,
		RelatedDiscrepancies: related,
		RecentAdjustments:    recent,
	}, nil
}

type LocationMetrics struct {
	TotalDiscrepancies    int             `json:"total_discrepancies"`
	OpenDiscrepancies     int             `json:"open_discrepancies"`
	TotalAdjustments      int             `json:"total_adjustments"`
	TotalCycleCounts      int             `json:"total_cycle_counts"`
	AvgCycleCountVariance decimal.Decimal `json:"avg_cycle_count_variance"`
}

type LocationAnalysis struct {
	LocationCode        string               `json:"location_code"`
	Period              AnalysisPeriod       `json:"period"`
	Metrics             LocationMetrics      `json:"metrics"`
	ByType              map[string]int       `json:"by_type"`
	BySeverity          map[string]int       `json:"by_severity"`
	RecentDiscrepancies []models.Discrepancy `json:"recent_discrepancies"`
	UniqueOperators     []int                `json:"unique_operators"`
}

// AnalyzeLocation summarizes a location's discrepancy, adjustment, and count
// history over a trailing window.
func AnalyzeLocation(ctx context.Context, locationCode string, days int) (*LocationAnalysis, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	window := models.TimeWindow{From: now.AddDate(0, 0, -days), To: now}
	scope := models.RecordScope{LocationCode: &locationCode}

	discrepancies, _, err := models.ListDiscrepancies(ctx, models.DiscrepancyFilter{
		LocationCode: locationCode,
		DetectedFrom: &window.From,
	}, "detected_at", "desc", 500, 0)
	if err != nil {
		return nil, err
	}
	adjustments, err := models.QueryAdjustments(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	cycleCounts, err := models.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	bySeverity := make(map[string]int)
	open := 0
	for _, d := range discrepancies {
		byType[string(d.Type)]++
		bySeverity[string(d.Severity)]++
		if d.Status == models.DiscrepancyStatusOpen {
			open++
		}
	}

	avgVariance := decimal.Zero
	if len(cycleCounts) > 0 {
		total := decimal.Zero
		for _, c := range cycleCounts {
			total = total.Add(c.Variance.Abs())
		}
		avgVariance = total.Div(decimal.NewFromInt(int64(len(cycleCounts))))
	}

	seen := make(map[int]bool)
	operators := []int{}
	for _, a := range adjustments {
		if a.UserId != nil && !seen[*a.UserId] {
			seen[*a.UserId] = true
			operators = append(operators, *a.UserId)
		}
	}

	recent := discrepancies
	if len(recent) > 10 {
		recent = recent[:10]
	}
	return &LocationAnalysis{
		LocationCode: locationCode,
		Period:       AnalysisPeriod{From: window.From, To: window.To},
		Metrics: LocationMetrics{
			TotalDiscrepancies:    len(discrepancies),
			OpenDiscrepancies:     open,
			TotalAdjustments:      len(adjustments),
			TotalCycleCounts:      len(cycleCounts),
			AvgCycleCountVariance: avgVariance,
		},
		ByType:              byType,
		BySeverity:          bySeverity,
		RecentDiscrepancies: recent,
		UniqueOperators:     operators,
	}, nil
}
