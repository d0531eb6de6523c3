package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/models"
)

// Integration test: the open-row de-duplication of the discrepancy registry
// against a real MySQL. Requires DB_* env vars pointing at a disposable
// database.
func TestDiscrepancyRegistry_UpsertIdempotency(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	sku := fmt.Sprintf("IT-SKU-%d", time.Now().UnixNano())

	newDiscrepancy := func(severity models.Severity) *models.Discrepancy {
		return &models.Discrepancy{
			Type:         models.DiscrepancyTypeNegativeOnHand,
			Severity:     severity,
			Sku:          sku,
			LocationCode: "IT-A-01",
			ActualQty:    decimal.NewFromInt(-7),
			Variance:     decimal.NewFromInt(-7),
			Status:       models.DiscrepancyStatusOpen,
			Description:  "integration fixture",
			DetectedAt:   time.Now().UTC(),
		}
	}

	first := newDiscrepancy(models.SeverityCritical)
	created, err := models.UpsertDiscrepancy(ctx, first)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if !created {
		t.Fatal("expected the first upsert to create a row")
	}
	if first.ID == 0 {
		t.Fatal("expected the created row's id populated")
	}

	// The same key while OPEN refreshes in place.
	second := newDiscrepancy(models.SeverityHigh)
	created, err = models.UpsertDiscrepancy(ctx, second)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if created {
		t.Fatal("expected the second upsert to refresh, not create")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the open row reused, got id %d vs %d", second.ID, first.ID)
	}

	refreshed, err := models.GetDiscrepancy(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetDiscrepancy failed: %v", err)
	}
	if refreshed.Severity != models.SeverityHigh {
		t.Fatalf("expected the severity refreshed to high, got %s", refreshed.Severity)
	}
	if refreshed.Status != models.DiscrepancyStatusOpen {
		t.Fatalf("expected the row still open, got %s", refreshed.Status)
	}

	// A root cause must be confirmed before resolution; resolving then frees
	// the key and the next upsert opens a fresh row.
	if err := models.ResolveDiscrepancy(ctx, first.ID); err == nil {
		t.Fatal("expected resolving an open discrepancy to be rejected")
	}
	if _, err := models.AssignRootCause(ctx, first.ID, "unrecorded damage disposal", models.RootCauseCategoryProcess, nil, nil); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := models.ResolveDiscrepancy(ctx, first.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	third := newDiscrepancy(models.SeverityCritical)
	created, err = models.UpsertDiscrepancy(ctx, third)
	if err != nil {
		t.Fatalf("third upsert failed: %v", err)
	}
	if !created {
		t.Fatal("expected a new row after the previous one resolved")
	}
	if third.ID == first.ID {
		t.Fatal("expected the resolved row untouched")
	}
}

func TestAssignRootCause_Integration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	d := &models.Discrepancy{
		Type:         models.DiscrepancyTypeCycleCountVariance,
		Severity:     models.SeverityMedium,
		Sku:          fmt.Sprintf("IT-SKU-%d", time.Now().UnixNano()),
		LocationCode: "IT-B-02",
		Variance:     decimal.NewFromInt(-12),
		Status:       models.DiscrepancyStatusOpen,
		DetectedAt:   time.Now().UTC(),
	}
	if _, err := models.UpsertDiscrepancy(ctx, d); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	notes := "retrain receiving team"
	assignedTo := "Warehouse Supervisor"
	investigation, err := models.AssignRootCause(ctx, d.ID, "putaway skipped after receive", models.RootCauseCategoryProcess, &notes, &assignedTo)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if investigation.DiscrepancyId != d.ID {
		t.Fatalf("expected investigation bound to discrepancy %d, got %d", d.ID, investigation.DiscrepancyId)
	}
	if investigation.Notes == nil || *investigation.Notes != notes {
		t.Fatalf("expected the notes stored, got %v", investigation.Notes)
	}
	if investigation.AssignedTo == nil || *investigation.AssignedTo != assignedTo {
		t.Fatalf("expected the assignee stored, got %v", investigation.AssignedTo)
	}
	if investigation.ConfirmedAt.IsZero() {
		t.Fatal("expected confirmedAt stamped on creation")
	}

	updated, err := models.GetDiscrepancy(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDiscrepancy failed: %v", err)
	}
	if updated.Status != models.DiscrepancyStatusInvestigated {
		t.Fatalf("expected status investigated, got %s", updated.Status)
	}
	if updated.RootCause == nil || *updated.RootCause != "putaway skipped after receive" {
		t.Fatalf("expected the root cause stored, got %v", updated.RootCause)
	}
	if len(updated.Investigations) != 1 {
		t.Fatalf("expected 1 investigation preloaded, got %d", len(updated.Investigations))
	}

	// RESOLVED rows reject further assignment.
	if err := models.ResolveDiscrepancy(ctx, d.ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := models.AssignRootCause(ctx, d.ID, "late cause", models.RootCauseCategoryProcess, nil, nil); err == nil {
		t.Fatal("expected assignment on a resolved discrepancy to fail")
	}
}
