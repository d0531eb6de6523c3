package reports

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

type QuantityChange struct {
	Sku          string          `json:"sku"`
	LocationCode string          `json:"location_code"`
	PreviousQty  decimal.Decimal `json:"previous_qty"`
	CurrentQty   decimal.Decimal `json:"current_qty"`
	Change       decimal.Decimal `json:"change"`
}

type Reconciliation struct {
	Additions []models.InventorySnapshot `json:"additions"`
	Removals  []models.InventorySnapshot `json:"removals"`
	Changes   []QuantityChange           `json:"changes"`
	Unchanged int                        `json:"unchanged"`
}

// ReconcileSnapshots diffs two ingestion snapshots sku/location by
// sku/location. An empty compare id diffs against nothing, reporting every
// current row as an addition.
func ReconcileSnapshots(ctx context.Context, ingestionID, compareToIngestionID string) (*Reconciliation, error) {
	if ingestionID == "" {
		return nil, utils.NewValidationError("snapshotId", "must not be empty")
	}
	current, err := snapshotsByIngestion(ctx, ingestionID)
	if err != nil {
		return nil, err
	}
	var previous []models.InventorySnapshot
	if compareToIngestionID != "" {
		previous, err = snapshotsByIngestion(ctx, compareToIngestionID)
		if err != nil {
			return nil, err
		}
	}

	currentMap := make(map[string]models.InventorySnapshot, len(current))
	for _, s := range current {
		currentMap[s.Sku+"-"+s.LocationCode] = s
	}
	previousMap := make(map[string]models.InventorySnapshot, len(previous))
	for _, s := range previous {
		previousMap[s.Sku+"-"+s.LocationCode] = s
	}

	rec := &Reconciliation{
		Additions: []models.InventorySnapshot{},
		Removals:  []models.InventorySnapshot{},
		Changes:   []QuantityChange{},
	}
	for _, curr := range current {
		prev, ok := previousMap[curr.Sku+"-"+curr.LocationCode]
		switch {
		case !ok:
			rec.Additions = append(rec.Additions, curr)
		case !curr.QuantityOnHand.Equal(prev.QuantityOnHand):
			rec.Changes = append(rec.Changes, QuantityChange{
				Sku:          curr.Sku,
				LocationCode: curr.LocationCode,
				PreviousQty:  prev.QuantityOnHand,
				CurrentQty:   curr.QuantityOnHand,
				Change:       curr.QuantityOnHand.Sub(prev.QuantityOnHand),
			})
		default:
			rec.Unchanged++
		}
	}
	for _, prev := range previous {
		if _, ok := currentMap[prev.Sku+"-"+prev.LocationCode]; !ok {
			rec.Removals = append(rec.Removals, prev)
		}
	}
	return rec, nil
}

func snapshotsByIngestion(ctx context.Context, ingestionID string) ([]models.InventorySnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var rows []models.InventorySnapshot
	err := db.WithContext(ctx).
		Where("ingestion_id = ?", ingestionID).
		Order("sku, location_code").
		Find(&rows).Error
	if err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}
