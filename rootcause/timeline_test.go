package rootcause

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

var timelineBase = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func TestBuildTimeline_ChronologicalAcrossSources(t *testing.T) {
	loc := "A-01"
	discrepancy := &models.Discrepancy{
		Type:       models.DiscrepancyTypeTransactionGap,
		Severity:   models.SeverityMedium,
		Variance:   decimal.NewFromInt(-20),
		DetectedAt: timelineBase.Add(72 * time.Hour),
	}
	transactions := []models.TransactionSnapshot{
		{Sku: "SKU-1", Type: models.TransactionTypePick, FromLocation: &loc, Quantity: decimal.NewFromInt(5), TransactionDate: timelineBase.Add(48 * time.Hour)},
		{Sku: "SKU-1", Type: models.TransactionTypeReceive, ToLocation: &loc, Quantity: decimal.NewFromInt(40), TransactionDate: timelineBase},
	}
	adjustments := []models.AdjustmentSnapshot{
		{Sku: "SKU-1", LocationCode: loc, AdjustmentQty: decimal.NewFromInt(-3), Reason: "damage", AdjustmentDate: timelineBase.Add(24 * time.Hour)},
	}
	cycleCounts := []models.CycleCountSnapshot{
		{Sku: "SKU-1", LocationCode: loc, SystemQty: decimal.NewFromInt(42), CountedQty: decimal.NewFromInt(22), Variance: decimal.NewFromInt(-20), CountDate: timelineBase.Add(60 * time.Hour)},
	}

	events := BuildTimeline(transactions, adjustments, cycleCounts, discrepancy)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("events out of order at index %d: %v before %v", i, events[i].Timestamp, events[i-1].Timestamp)
		}
	}
	if events[0].Type != EventTransaction || events[0].Action != "RECEIVE" {
		t.Fatalf("expected the receive first, got %s/%s", events[0].Type, events[0].Action)
	}
	if events[len(events)-1].Type != EventDiscrepancyDetected {
		t.Fatalf("expected the detection event last, got %s", events[len(events)-1].Type)
	}
}

func TestBuildTimeline_StableForEqualTimestamps(t *testing.T) {
	loc := "A-01"
	transactions := []models.TransactionSnapshot{
		{Sku: "SKU-1", Type: models.TransactionTypePick, FromLocation: &loc, Quantity: decimal.NewFromInt(1), TransactionDate: timelineBase},
	}
	adjustments := []models.AdjustmentSnapshot{
		{Sku: "SKU-1", LocationCode: loc, AdjustmentQty: decimal.NewFromInt(-1), AdjustmentDate: timelineBase},
	}

	events := BuildTimeline(transactions, adjustments, nil, nil)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTransaction || events[1].Type != EventAdjustment {
		t.Fatalf("expected ties to keep transaction-then-adjustment order, got %s then %s", events[0].Type, events[1].Type)
	}
}

func TestBuildTimeline_EmptyInput(t *testing.T) {
	events := BuildTimeline(nil, nil, nil, nil)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
