// Package truth implements the inventory truth engine: a bank of detectors
// that reconcile snapshot, transaction, adjustment, and cycle-count history
// into discrepancy findings, and the analysis run that persists them.
package truth

import (
	"context"
	"time"

	"bitbucket.org/flowlogic/wms_backend/models"
	"github.com/shopspring/decimal"
)

// Store supplies the ordered record history the detectors scan. Queries
// return records inside [window.From, window.To) matching the scope filter,
// ascending by their own date field.
type Store interface {
	QueryInventorySnapshots(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]models.InventorySnapshot, error)
	QueryTransactions(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]models.TransactionSnapshot, error)
	QueryAdjustments(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]models.AdjustmentSnapshot, error)
	QueryCycleCounts(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]models.CycleCountSnapshot, error)
}

// Registry persists findings with open-row de-duplication. Upsert reports
// whether a new discrepancy row was created.
type Registry interface {
	Upsert(ctx context.Context, d *models.Discrepancy) (bool, error)
}

// Finding is a transient detector output, prior to registry persistence.
type Finding struct {
	Type            models.DiscrepancyType `json:"type"`
	Severity        models.Severity        `json:"severity"`
	Sku             string                 `json:"sku"`
	LocationCode    string                 `json:"location_code"`
	ExpectedQty     decimal.Decimal        `json:"expected_qty"`
	ActualQty       decimal.Decimal        `json:"actual_qty"`
	Variance        decimal.Decimal        `json:"variance"`
	VariancePercent float64                `json:"variance_percent"`
	VarianceValue   decimal.Decimal        `json:"variance_value"`
	Description     string                 `json:"description"`
	Evidence        models.JSONMap         `json:"evidence"`
}

// Detector scans one signal type over a window and emits findings. One pass
// per invocation; implementations hold no state between calls.
type Detector interface {
	Type() models.DiscrepancyType
	Scan(ctx context.Context, scope models.RecordScope, window models.TimeWindow) ([]Finding, error)
}

// DetectorFailure reports one detector that errored during a run. The run
// itself still completes with the surviving detectors' findings.
type DetectorFailure struct {
	Detector models.DiscrepancyType `json:"detector"`
	Error    string                 `json:"error"`
}

// AnalysisResult summarizes one detection run.
type AnalysisResult struct {
	AnalysisId           string            `json:"analysis_id"`
	Timestamp            time.Time         `json:"timestamp"`
	Window               models.TimeWindow `json:"window"`
	Findings             []Finding         `json:"findings"`
	DiscrepanciesCreated int               `json:"discrepancies_created"`
	Failures             []DetectorFailure `json:"failures,omitempty"`
}

func (f *Finding) toDiscrepancy(now time.Time) *models.Discrepancy {
	return &models.Discrepancy{
		Type:            f.Type,
		Severity:        f.Severity,
		Sku:             f.Sku,
		LocationCode:    f.LocationCode,
		ExpectedQty:     f.ExpectedQty,
		ActualQty:       f.ActualQty,
		Variance:        f.Variance,
		VariancePercent: f.VariancePercent,
		VarianceValue:   f.VarianceValue,
		Status:          models.DiscrepancyStatusOpen,
		Description:     f.Description,
		Evidence:        f.Evidence,
		DetectedAt:      now,
	}
}
