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

// AdjustmentSpikeDetector groups adjustments into daily volumes per
// (sku, location) and flags days whose volume sits two or more standard
// deviations above that pair's mean, or days with more than five individual
// adjustments. Uniform histories have zero deviation; those days only flag
// through the count threshold.
type AdjustmentSpikeDetector struct {
	Store Store
}

func (d *AdjustmentSpikeDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeAdjustmentSpike
}

type adjustmentDay struct {
	day     time.Time
	volume  decimal.Decimal
	count   int
	reasons []string
}

func (d *AdjustmentSpikeDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	adjustments, err := d.Store.QueryAdjustments(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	series := groupAdjustmentsByDay(adjustments)
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var findings []Finding
	for _, key := range keys {
		days := series[key]
		mean, stddev := volumeStats(days)

		for _, day := range days {
			volume := day.volume.InexactFloat64()
			zScore := 0.0
			if stddev > 0 {
				zScore = (volume - mean) / stddev
			}
			if zScore < 2 && day.count <= 5 {
				continue
			}

			sku, locationCode := splitSeriesKey(key)
			variancePercent := 0.0
			if mean != 0 {
				variancePercent = (volume - mean) / mean * 100
			}
			meanDec := decimal.NewFromFloat(mean).Round(4)
			findings = append(findings, Finding{
				Type:            d.Type(),
				Severity:        spikeSeverity(zScore),
				Sku:             sku,
				LocationCode:    locationCode,
				ExpectedQty:     meanDec,
				ActualQty:       day.volume,
				Variance:        day.volume.Sub(meanDec),
				VariancePercent: variancePercent,
				VarianceValue:   decimal.Zero,
				Description: fmt.Sprintf("Unusual adjustment activity: %s units adjusted on %s (%.1f sigma above average)",
					day.volume, day.day.Format("2006-01-02"), zScore),
				Evidence: models.JSONMap{
					"date":          day.day.Format("2006-01-02"),
					"dailyVolume":   day.volume.String(),
					"dailyCount":    day.count,
					"averageVolume": mean,
					"zScore":        zScore,
					"reasons":       day.reasons,
				},
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		zi, _ := findings[i].Evidence["zScore"].(float64)
		zj, _ := findings[j].Evidence["zScore"].(float64)
		return zi > zj
	})
	return findings, nil
}

// groupAdjustmentsByDay buckets adjustments into per-(sku, location) daily
// totals of absolute volume, ordered by day.
func groupAdjustmentsByDay(adjustments []models.AdjustmentSnapshot) map[string][]adjustmentDay {
	buckets := make(map[string]map[time.Time]*adjustmentDay)
	for _, a := range adjustments {
		key := a.Sku + "|" + a.LocationCode
		day := a.AdjustmentDate.UTC().Truncate(24 * time.Hour)
		if buckets[key] == nil {
			buckets[key] = make(map[time.Time]*adjustmentDay)
		}
		b := buckets[key][day]
		if b == nil {
			b = &adjustmentDay{day: day, volume: decimal.Zero}
			buckets[key][day] = b
		}
		b.volume = b.volume.Add(a.AdjustmentQty.Abs())
		b.count++
		if a.Reason != "" && !containsString(b.reasons, a.Reason) {
			b.reasons = append(b.reasons, a.Reason)
		}
	}

	out := make(map[string][]adjustmentDay, len(buckets))
	for key, days := range buckets {
		list := make([]adjustmentDay, 0, len(days))
		for _, d := range days {
			list = append(list, *d)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].day.Before(list[j].day) })
		out[key] = list
	}
	return out
}

// volumeStats returns the mean and population standard deviation of daily
// volumes. A single data point yields stddev 0.
func volumeStats(days []adjustmentDay) (mean, stddev float64) {
	if len(days) == 0 {
		return 0, 0
	}
	n := float64(len(days))
	var sum float64
	for _, d := range days {
		sum += d.volume.InexactFloat64()
	}
	mean = sum / n

	var sumSq float64
	for _, d := range days {
		diff := d.volume.InexactFloat64() - mean
		sumSq += diff * diff
	}
	return mean, math.Sqrt(sumSq / n)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
