package truth

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// CycleCountVarianceDetector flags physical counts that disagree with system
// quantity beyond 5% or 10 units.
type CycleCountVarianceDetector struct {
	Store Store
}

func (d *CycleCountVarianceDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeCycleCountVariance
}

func (d *CycleCountVarianceDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	counts, err := d.Store.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	ten := decimal.NewFromInt(10)
	var findings []Finding
	for _, c := range counts {
		absPct := c.VariancePercent
		if absPct < 0 {
			absPct = -absPct
		}
		if absPct <= 5 && c.Variance.Abs().LessThanOrEqual(ten) {
			continue
		}
		findings = append(findings, cycleCountFinding(d.Type(), c, cycleCountSeverity(c.Variance, c.VariancePercent),
			fmt.Sprintf("Cycle count variance: system showed %s, counted %s (%.1f%%)", c.SystemQty, c.CountedQty, c.VariancePercent)))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Variance.Abs().GreaterThan(findings[j].Variance.Abs())
	})
	return findings, nil
}

// PhantomInventoryDetector flags stock the system believes in but a physical
// count found entirely absent.
type PhantomInventoryDetector struct {
	Store Store
}

func (d *PhantomInventoryDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypePhantomInventory
}

func (d *PhantomInventoryDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	counts, err := d.Store.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, c := range counts {
		if !c.SystemQty.IsPositive() || !c.CountedQty.IsZero() {
			continue
		}
		findings = append(findings, cycleCountFinding(d.Type(), c, cycleCountSeverity(c.Variance, c.VariancePercent),
			fmt.Sprintf("Phantom inventory: system shows %s units of %s at %s but count found none", c.SystemQty, c.Sku, c.LocationCode)))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Variance.Abs().GreaterThan(findings[j].Variance.Abs())
	})
	return findings, nil
}

// MisSlotDetector pairs a shortage at one location with a matching overage at
// another for the same sku in the same window. Stock that moved slots without
// a transfer shows up as two offsetting count variances.
type MisSlotDetector struct {
	Store Store

	// Tolerance is the allowed difference between the offsetting variances.
	// Defaults to one unit.
	Tolerance decimal.Decimal
}

func (d *MisSlotDetector) Type() models.DiscrepancyType {
	return models.DiscrepancyTypeMisSlot
}

func (d *MisSlotDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	counts, err := d.Store.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	tolerance := d.Tolerance
	if tolerance.IsZero() {
		tolerance = decimal.NewFromInt(1)
	}

	bySku := make(map[string][]models.CycleCountSnapshot)
	for _, c := range counts {
		if c.Variance.IsZero() {
			continue
		}
		bySku[c.Sku] = append(bySku[c.Sku], c)
	}
	skus := make([]string, 0, len(bySku))
	for sku := range bySku {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	var findings []Finding
	for _, sku := range skus {
		rows := bySku[sku]
		matched := make([]bool, len(rows))
		for i, short := range rows {
			if matched[i] || !short.Variance.IsNegative() {
				continue
			}
			for j, over := range rows {
				if i == j || matched[j] || !over.Variance.IsPositive() || over.LocationCode == short.LocationCode {
					continue
				}
				if short.Variance.Abs().Sub(over.Variance).Abs().GreaterThan(tolerance) {
					continue
				}
				matched[i], matched[j] = true, true
				f := cycleCountFinding(d.Type(), short, cycleCountSeverity(short.Variance, short.VariancePercent),
					fmt.Sprintf("Possible mis-slot: %s short %s at %s while %s shows matching overage", sku, short.Variance.Abs(), short.LocationCode, over.LocationCode))
				f.Evidence["overageLocation"] = over.LocationCode
				f.Evidence["overageQty"] = over.Variance.String()
				findings = append(findings, f)
				break
			}
		}
	}
	return findings, nil
}

// UnexplainedVarianceDetector flags large count variances with no adjustment
// activity in the window that could account for them. Shortage and overage
// are separate discrepancy types so they de-duplicate independently.
type UnexplainedVarianceDetector struct {
	Store Store

	// Overage selects the positive-variance side; the zero value scans for
	// shortages.
	Overage bool
}

func (d *UnexplainedVarianceDetector) Type() models.DiscrepancyType {
	if d.Overage {
		return models.DiscrepancyTypeUnexplainedOverage
	}
	return models.DiscrepancyTypeUnexplainedShortage
}

func (d *UnexplainedVarianceDetector) Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error) {
	counts, err := d.Store.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	adjustments, err := d.Store.QueryAdjustments(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	adjusted := make(map[string]bool)
	for _, a := range adjustments {
		adjusted[a.Sku+"|"+a.LocationCode] = true
	}

	ten := decimal.NewFromInt(10)
	var findings []Finding
	for _, c := range counts {
		if d.Overage && !c.Variance.IsPositive() {
			continue
		}
		if !d.Overage && !c.Variance.IsNegative() {
			continue
		}
		if c.Variance.Abs().LessThanOrEqual(ten) {
			continue
		}
		if adjusted[c.Sku+"|"+c.LocationCode] {
			continue
		}
		direction := "shortage"
		if d.Overage {
			direction = "overage"
		}
		findings = append(findings, cycleCountFinding(d.Type(), c, cycleCountSeverity(c.Variance, c.VariancePercent),
			fmt.Sprintf("Unexplained %s of %s units for %s at %s with no adjustment activity", direction, c.Variance.Abs(), c.Sku, c.LocationCode)))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Variance.Abs().GreaterThan(findings[j].Variance.Abs())
	})
	return findings, nil
}

func cycleCountFinding(dtype models.DiscrepancyType, c models.CycleCountSnapshot, severity models.Severity, description string) Finding {
	evidence := models.JSONMap{
		"systemQty":  c.SystemQty.String(),
		"countedQty": c.CountedQty.String(),
		"countDate":  c.CountDate,
	}
	if c.CounterId != nil {
		evidence["counterId"] = *c.CounterId
	}
	return Finding{
		Type:            dtype,
		Severity:        severity,
		Sku:             c.Sku,
		LocationCode:    c.LocationCode,
		ExpectedQty:     c.SystemQty,
		ActualQty:       c.CountedQty,
		Variance:        c.Variance,
		VariancePercent: c.VariancePercent,
		VarianceValue:   decimal.Zero,
		Description:     description,
		Evidence:        evidence,
	}
}
