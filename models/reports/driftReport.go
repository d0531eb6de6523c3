package reports

import (
	"context"
	"time"

	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/truth"
)

type DriftPoint struct {
	X    int       `json:"x"`
	Y    float64   `json:"y"`
	Date time.Time `json:"date"`
}

type DriftReport struct {
	Trend           string       `json:"trend"`
	Slope           float64      `json:"slope"`
	Intercept       float64      `json:"intercept"`
	ProjectedEndQty float64      `json:"projected_end_qty"`
	History         []DriftPoint `json:"history"`
}

// AnalyzeDrift fits a trend line over one sku/location's snapshot history and
// projects on-hand quantity the same number of days forward. Fewer than two
// observations is reported as insufficient data, not an error.
func AnalyzeDrift(ctx context.Context, sku, locationCode string, days int) (*DriftReport, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	window := models.TimeWindow{From: now.AddDate(0, 0, -days), To: now}
	scope := models.RecordScope{}
	if sku != "" {
		scope.Sku = &sku
	}
	if locationCode != "" {
		scope.LocationCode = &locationCode
	}

	history, err := models.QueryInventorySnapshots(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	points := make([]DriftPoint, len(history))
	fitPoints := make([]truth.Point, len(history))
	for i, h := range history {
		qty := h.QuantityOnHand.InexactFloat64()
		points[i] = DriftPoint{X: i, Y: qty, Date: h.SnapshotDate}
		fitPoints[i] = truth.Point{X: float64(i), Y: qty}
	}

	if len(points) < 2 {
		return &DriftReport{Trend: "insufficient_data", History: points}, nil
	}

	trend := truth.FitLinearTrend(fitPoints)
	return &DriftReport{
		Trend:           truth.ClassifyTrend(trend.Slope, 0),
		Slope:           trend.Slope,
		Intercept:       trend.Intercept,
		ProjectedEndQty: trend.At(float64(len(points) + days)),
		History:         points,
	}, nil
}
