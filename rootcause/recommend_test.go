package rootcause

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

func TestGenerateRecommendations_CycleCountAlwaysLeads(t *testing.T) {
	discrepancy := testDiscrepancy()
	discrepancy.Variance = decimal.NewFromInt(-3)

	recommendations := GenerateRecommendations(discrepancy, nil)
	if len(recommendations) != 1 {
		t.Fatalf("expected only the verification count, got %d", len(recommendations))
	}
	r := recommendations[0]
	if r.Priority != 1 || r.Action != ActionCycleCount {
		t.Fatalf("expected priority 1 cycle count, got %+v", r)
	}
	if r.AssignTo != "inventory_control" {
		t.Fatalf("expected inventory_control assignee, got %s", r.AssignTo)
	}
}

func TestGenerateRecommendations_PerCauseActions(t *testing.T) {
	causes := []PossibleCause{
		{Category: models.RootCauseCategoryHuman, Confidence: models.ConfidenceHigh},
		{Category: models.RootCauseCategoryLocation, Confidence: models.ConfidenceHigh},
		{Category: models.RootCauseCategoryProcess, Confidence: models.ConfidenceMedium},
	}

	recommendations := GenerateRecommendations(testDiscrepancy(), causes)
	actions := make(map[string]Recommendation)
	for _, r := range recommendations {
		actions[r.Action] = r
	}
	if _, ok := actions[ActionTrainingReview]; !ok {
		t.Fatal("expected a training review for the human cause")
	}
	if r, ok := actions[ActionLocationAudit]; !ok || r.AssignTo != "warehouse_ops" {
		t.Fatalf("expected a location audit assigned to warehouse_ops, got %+v", r)
	}
	if r, ok := actions[ActionProcessReview]; !ok || r.Priority != 3 {
		t.Fatalf("expected a priority 3 process review, got %+v", r)
	}
}

func TestGenerateRecommendations_AdjustmentThresholds(t *testing.T) {
	// Variance -20: adjustment proposed without approval.
	discrepancy := testDiscrepancy()
	recommendations := GenerateRecommendations(discrepancy, nil)
	var adjustment *Recommendation
	for i := range recommendations {
		if recommendations[i].Action == ActionAdjustment {
			adjustment = &recommendations[i]
		}
	}
	if adjustment == nil {
		t.Fatal("expected an adjustment recommendation at variance -20")
	}
	if adjustment.RequiresApproval {
		t.Fatal("20 units should not need approval")
	}
	if adjustment.Description != "After root cause confirmed, adjust inventory by 20" {
		t.Fatalf("expected the correcting quantity in the description, got %q", adjustment.Description)
	}

	// Variance -80: approval required.
	discrepancy.Variance = decimal.NewFromInt(-80)
	recommendations = GenerateRecommendations(discrepancy, nil)
	found := false
	for _, r := range recommendations {
		if r.Action == ActionAdjustment {
			found = true
			if !r.RequiresApproval {
				t.Fatal("80 units should require approval")
			}
		}
	}
	if !found {
		t.Fatal("expected an adjustment recommendation at variance -80")
	}
}
