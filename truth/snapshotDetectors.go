package truth

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// NegativeOnHandDetector flags any snapshot whose on-hand quantity is below
// zero. Always CRITICAL; the monetary impact is |qty| * unit cost.
type NegativeOnHandDetector struct {
	Store Store
}

func (d *NegativeOnHandDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeNegativeOnHand
}

func (d *NegativeOnHandDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	snapshots, err := d.Store.QueryInventorySnapshots(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	// Records arrive ascending, so the last row per key is the latest state.
	latest := make(map[string]models.InventorySnapshot)
	for _, s := range snapshots {
		if s.QuantityOnHand.IsNegative() {
			latest[s.Sku+"|"+s.LocationCode] = s
		}
	}

	findings := make([]Finding, 0, len(latest))
	for _, s := range latest {
		findings = append(findings, Finding{
			Type:            d.Type(),
			Severity:        models.SeverityCritical,
			Sku:             s.Sku,
			LocationCode:    s.LocationCode,
			ExpectedQty:     decimal.Zero,
			ActualQty:       s.QuantityOnHand,
			Variance:        s.QuantityOnHand,
			VariancePercent: -100,
			VarianceValue:   s.QuantityOnHand.Abs().Mul(s.UnitCost),
			Description:     fmt.Sprintf("Negative on-hand quantity (%s) for %s at %s", s.QuantityOnHand, s.Sku, s.LocationCode),
			Evidence: models.JSONMap{
				"currentQty": s.QuantityOnHand.String(),
				"unitCost":   s.UnitCost.String(),
			},
		})
	}
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].ActualQty.LessThan(findings[j].ActualQty)
	})
	return findings, nil
}

// TransactionGapDetector reconciles consecutive snapshot pairs against the
// signed transaction net over the same interval. A gap beyond one unit means
// stock moved without a matching transaction trail.
type TransactionGapDetector struct {
	Store Store
}

func (d *TransactionGapDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeTransactionGap
}

func (d *TransactionGapDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	snapshots, err := d.Store.QueryInventorySnapshots(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	transactions, err := d.Store.QueryTransactions(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	series := make(map[string][]models.InventorySnapshot)
	for _, s := range snapshots {
		key := s.Sku + "|" + s.LocationCode
		series[key] = append(series[key], s)
	}
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	one := decimal.NewFromInt(1)
	var findings []Finding
	for _, key := range keys {
		rows := series[key]
		for i := 1; i < len(rows); i++ {
			prev, curr := rows[i-1], rows[i]
			snapshotChange := curr.QuantityOnHand.Sub(prev.QuantityOnHand)
			txChange := netTransactionChange(transactions, curr.Sku, curr.LocationCode, prev.SnapshotDate, curr.SnapshotDate)
			gap := snapshotChange.Sub(txChange)
			if gap.Abs().LessThanOrEqual(one) {
				continue
			}

			variancePercent := 0.0
			if !prev.QuantityOnHand.IsZero() {
				variancePercent = gap.Div(prev.QuantityOnHand).InexactFloat64() * 100
			}
			findings = append(findings, Finding{
				Type:            d.Type(),
				Severity:        gapSeverity(gap),
				Sku:             curr.Sku,
				LocationCode:    curr.LocationCode,
				ExpectedQty:     txChange,
				ActualQty:       snapshotChange,
				Variance:        gap,
				VariancePercent: variancePercent,
				VarianceValue:   gap.Abs().Mul(curr.UnitCost),
				Description:     fmt.Sprintf("Inventory change (%s) doesn't match transaction total (%s)", snapshotChange, txChange),
				Evidence: models.JSONMap{
					"previousQty":       prev.QuantityOnHand.String(),
					"currentQty":        curr.QuantityOnHand.String(),
					"snapshotChange":    snapshotChange.String(),
					"transactionChange": txChange.String(),
					"unexplainedGap":    gap.String(),
				},
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Variance.Abs().GreaterThan(findings[j].Variance.Abs())
	})
	return findings, nil
}

// netTransactionChange sums transaction quantities for a sku/location inside
// [from, to): inbound positive, outbound negative.
func netTransactionChange(transactions []models.TransactionSnapshot, sku, locationCode string, from, to time.Time) decimal.Decimal {
	net := decimal.Zero
	for _, t := range transactions {
		if t.Sku != sku {
			continue
		}
		if t.TransactionDate.Before(from) || !t.TransactionDate.Before(to) {
			continue
		}
		if t.ToLocation != nil && *t.ToLocation == locationCode {
			net = net.Add(t.Quantity)
		} else if t.FromLocation != nil && *t.FromLocation == locationCode {
			net = net.Sub(t.Quantity)
		}
	}
	return net
}

// DriftDetector fits a linear trend over daily-averaged on-hand quantity and
// flags gradual unexplained change. It needs at least seven daily points.
type DriftDetector struct {
	Store Store

	// MinDataPoints overrides the seven point floor when positive.
	MinDataPoints int
}

func (d *DriftDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeDriftDetected
}

func (d *DriftDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	snapshots, err := d.Store.QueryInventorySnapshots(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	minPoints := d.MinDataPoints
	if minPoints <= 0 {
		minPoints = 7
	}

	daily := dailyAverageQty(snapshots)
	keys := make([]string, 0, len(daily))
	for k := range daily {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var findings []Finding
	for _, key := range keys {
		points := daily[key]
		if len(points) < minPoints {
			continue
		}
		fitPoints := make([]Point, len(points))
		for i, p := range points {
			fitPoints[i] = Point{X: float64(i), Y: p.avgQty}
		}
		trend := FitLinearTrend(fitPoints)
		start := trend.At(0)
		end := trend.At(float64(len(points) - 1))
		drift := end - start

		percentDrift := 0.0
		if start != 0 {
			percentDrift = drift / start * 100
		}
		if math.Abs(drift) <= 5 || math.Abs(percentDrift) <= 5 {
			continue
		}

		sku, locationCode := splitSeriesKey(key)
		findings = append(findings, Finding{
			Type:            d.Type(),
			Severity:        driftSeverity(percentDrift),
			Sku:             sku,
			LocationCode:    locationCode,
			ExpectedQty:     decimal.NewFromFloat(start).Round(4),
			ActualQty:       decimal.NewFromFloat(end).Round(4),
			Variance:        decimal.NewFromFloat(drift).Round(4),
			VariancePercent: percentDrift,
			VarianceValue:   decimal.Zero,
			Description: fmt.Sprintf("Inventory drift detected: quantity changed from %.1f to %.1f (%.1f%%) over %d days",
				start, end, percentDrift, len(points)),
			Evidence: models.JSONMap{
				"startQty":      start,
				"endQty":        end,
				"absoluteDrift": drift,
				"percentDrift":  percentDrift,
				"dataPoints":    len(points),
				"slope":         trend.Slope,
				"trend":         ClassifyTrend(trend.Slope, 0),
			},
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Variance.Abs().GreaterThan(findings[j].Variance.Abs())
	})
	return findings, nil
}

type dailyQtyPoint struct {
	day    time.Time
	avgQty float64
}

// dailyAverageQty collapses snapshots into one averaged point per
// (sku, location, UTC day), ordered by day.
func dailyAverageQty(snapshots []models.InventorySnapshot) map[string][]dailyQtyPoint {
	type bucket struct {
		sum   decimal.Decimal
		count int
	}
	buckets := make(map[string]map[time.Time]*bucket)
	for _, s := range snapshots {
		key := s.Sku + "|" + s.LocationCode
		day := s.SnapshotDate.UTC().Truncate(24 * time.Hour)
		if buckets[key] == nil {
			buckets[key] = make(map[time.Time]*bucket)
		}
		b := buckets[key][day]
		if b == nil {
			b = &bucket{sum: decimal.Zero}
			buckets[key][day] = b
		}
		b.sum = b.sum.Add(s.QuantityOnHand)
		b.count++
	}

	out := make(map[string][]dailyQtyPoint, len(buckets))
	for key, days := range buckets {
		points := make([]dailyQtyPoint, 0, len(days))
		for day, b := range days {
			points = append(points, dailyQtyPoint{
				day:    day,
				avgQty: b.sum.Div(decimal.NewFromInt(int64(b.count))).InexactFloat64(),
			})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].day.Before(points[j].day) })
		out[key] = points
	}
	return out
}

func splitSeriesKey(key string) (sku, locationCode string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
