package models

import (
	"context"
	"time"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TimeWindow is a [From, To) range. Records dated exactly at To are excluded.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// RecordScope optionally narrows a query to one SKU and/or location.
type RecordScope struct {
	Sku          *string `json:"sku,omitempty"`
	LocationCode *string `json:"location_code,omitempty"`
}

// InventorySnapshot is the on-hand quantity for a sku/location pair at a point
// in time. Rows are immutable once ingested; IngestionId groups the rows that
// arrived in one feed.
type InventorySnapshot struct {
	ID             int             `gorm:"primary_key" json:"id"`
	IngestionId    string          `gorm:"size:64;index" json:"ingestion_id"`
	Sku            string          `gorm:"size:64;not null;index:idx_inv_sku_loc_date" json:"sku"`
	LocationCode   string          `gorm:"size:32;not null;index:idx_inv_sku_loc_date" json:"location_code"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity_on_hand"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4)" json:"unit_cost"`
	SnapshotDate   time.Time       `gorm:"not null;index:idx_inv_sku_loc_date" json:"snapshot_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TransactionSnapshot is one discrete inventory movement.
type TransactionSnapshot struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Sku             string          `gorm:"size:64;not null;index" json:"sku"`
	Type            TransactionType `gorm:"size:32;not null" json:"type"`
	FromLocation    *string         `gorm:"size:32;index" json:"from_location,omitempty"`
	ToLocation      *string         `gorm:"size:32;index" json:"to_location,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UserId          *int            `gorm:"index" json:"user_id,omitempty"`
	TransactionDate time.Time       `gorm:"not null;index" json:"transaction_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// AdjustmentSnapshot is a manual correction to on-hand quantity; AdjustmentQty
// is signed.
type AdjustmentSnapshot struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Sku            string          `gorm:"size:64;not null;index:idx_adj_sku_loc" json:"sku"`
	LocationCode   string          `gorm:"size:32;not null;index:idx_adj_sku_loc" json:"location_code"`
	AdjustmentQty  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"adjustment_qty"`
	Reason         string          `gorm:"size:255" json:"reason"`
	UserId         *int            `gorm:"index" json:"user_id,omitempty"`
	AdjustmentDate time.Time       `gorm:"not null;index" json:"adjustment_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CycleCountSnapshot is a physical count reconciled against the system
// quantity. Variance = CountedQty - SystemQty.
type CycleCountSnapshot struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Sku             string          `gorm:"size:64;not null;index:idx_cc_sku_loc" json:"sku"`
	LocationCode    string          `gorm:"size:32;not null;index:idx_cc_sku_loc" json:"location_code"`
	SystemQty       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"system_qty"`
	CountedQty      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"counted_qty"`
	Variance        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"variance"`
	VariancePercent float64         `json:"variance_percent"`
	CounterId       *int            `gorm:"index" json:"counter_id,omitempty"`
	CountDate       time.Time       `gorm:"not null;index" json:"count_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func scopedWindow(q *gorm.DB, scope RecordScope, window TimeWindow, dateCol string) *gorm.DB {
	q = q.Where(dateCol+" >= ? AND "+dateCol+" < ?", window.From, window.To)
	if scope.Sku != nil && *scope.Sku != "" {
		q = q.Where("sku = ?", *scope.Sku)
	}
	return q
}

// QueryInventorySnapshots returns snapshots in the window, ordered ascending by
// snapshot date (detectors rely on the ordering).
func QueryInventorySnapshots(ctx context.Context, scope RecordScope, window TimeWindow) ([]InventorySnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	q := scopedWindow(db.WithContext(ctx), scope, window, "snapshot_date")
	if scope.LocationCode != nil && *scope.LocationCode != "" {
		q = q.Where("location_code = ?", *scope.LocationCode)
	}
	var rows []InventorySnapshot
	if err := q.Order("sku, location_code, snapshot_date ASC").Find(&rows).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}

// QueryTransactions returns transactions in the window, ordered ascending by
// transaction date. The location filter matches either endpoint of a movement.
func QueryTransactions(ctx context.Context, scope RecordScope, window TimeWindow) ([]TransactionSnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	q := scopedWindow(db.WithContext(ctx), scope, window, "transaction_date")
	if scope.LocationCode != nil && *scope.LocationCode != "" {
		q = q.Where("from_location = ? OR to_location = ?", *scope.LocationCode, *scope.LocationCode)
	}
	var rows []TransactionSnapshot
	if err := q.Order("transaction_date ASC").Find(&rows).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}

// QueryAdjustments returns adjustments in the window, ordered ascending by
// adjustment date.
func QueryAdjustments(ctx context.Context, scope RecordScope, window TimeWindow) ([]AdjustmentSnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	q := scopedWindow(db.WithContext(ctx), scope, window, "adjustment_date")
	if scope.LocationCode != nil && *scope.LocationCode != "" {
		q = q.Where("location_code = ?", *scope.LocationCode)
	}
	var rows []AdjustmentSnapshot
	if err := q.Order("adjustment_date ASC").Find(&rows).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}

// QueryAdjustmentsByUser returns one operator's adjustments in the window,
// ordered ascending by adjustment date.
func QueryAdjustmentsByUser(ctx context.Context, userID int, window TimeWindow) ([]AdjustmentSnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var rows []AdjustmentSnapshot
	err := db.WithContext(ctx).
		Where("user_id = ? AND adjustment_date >= ? AND adjustment_date < ?", userID, window.From, window.To).
		Order("adjustment_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}

// QueryCycleCounts returns cycle counts in the window, ordered ascending by
// count date.
func QueryCycleCounts(ctx context.Context, scope RecordScope, window TimeWindow) ([]CycleCountSnapshot, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	q := scopedWindow(db.WithContext(ctx), scope, window, "count_date")
	if scope.LocationCode != nil && *scope.LocationCode != "" {
		q = q.Where("location_code = ?", *scope.LocationCode)
	}
	var rows []CycleCountSnapshot
	if err := q.Order("count_date ASC").Find(&rows).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, nil
}

// TruthStore adapts the snapshot tables to the detector bank's store interface.
type TruthStore struct{}

func (TruthStore) QueryInventorySnapshots(ctx context.Context, scope RecordScope, window TimeWindow) ([]InventorySnapshot, error) {
	return QueryInventorySnapshots(ctx, scope, window)
}

func (TruthStore) QueryTransactions(ctx context.Context, scope RecordScope, window TimeWindow) ([]TransactionSnapshot, error) {
	return QueryTransactions(ctx, scope, window)
}

func (TruthStore) QueryAdjustments(ctx context.Context, scope RecordScope, window TimeWindow) ([]AdjustmentSnapshot, error) {
	return QueryAdjustments(ctx, scope, window)
}

func (TruthStore) QueryCycleCounts(ctx context.Context, scope RecordScope, window TimeWindow) ([]CycleCountSnapshot, error) {
	return QueryCycleCounts(ctx, scope, window)
}
