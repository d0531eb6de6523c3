package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discrepancy is a detected, persisted inventory problem. Rows are never
// deleted, only status-transitioned. OpenKey carries the de-duplication
// constraint: it is "sku|location|type" while the row is OPEN and NULL
// afterwards, so at most one OPEN row exists per key while closed history
// accumulates freely.
type Discrepancy struct {
	ID                int                `gorm:"primary_key" json:"id"`
	Type              DiscrepancyType    `gorm:"size:32;not null;index" json:"type"`
	Severity          Severity           `gorm:"size:16;not null;index" json:"severity"`
	Sku               string             `gorm:"size:64;not null;index" json:"sku"`
	LocationCode      string             `gorm:"size:32;not null;index" json:"location_code"`
	ExpectedQty       decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"expected_qty"`
	ActualQty         decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"actual_qty"`
	Variance          decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"variance"`
	VariancePercent   float64            `json:"variance_percent"`
	VarianceValue     decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"variance_value"`
	Status            DiscrepancyStatus  `gorm:"size:16;not null;index" json:"status"`
	Description       string             `gorm:"type:text" json:"description"`
	Evidence          JSONMap            `json:"evidence"`
	DetectedAt        time.Time          `gorm:"not null;index" json:"detected_at"`
	RootCause         *string            `gorm:"size:255" json:"root_cause,omitempty"`
	RootCauseCategory *RootCauseCategory `gorm:"size:32" json:"root_cause_category,omitempty"`
	OpenKey           *string            `gorm:"size:160;uniqueIndex" json:"-"`
	Investigations    []Investigation    `gorm:"foreignKey:DiscrepancyId" json:"investigations,omitempty"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func openKeyFor(sku, locationCode string, dtype DiscrepancyType) string {
	return fmt.Sprintf("%s|%s|%s", sku, locationCode, dtype)
}

// FindOpenDiscrepancy returns the OPEN row for (sku, location, type), or
// ErrorRecordNotFound.
func FindOpenDiscrepancy(ctx context.Context, sku, locationCode string, dtype DiscrepancyType) (*Discrepancy, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var d Discrepancy
	err := db.WithContext(ctx).
		Where("open_key = ?", openKeyFor(sku, locationCode, dtype)).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return &d, nil
}

// UpsertDiscrepancy records a finding. If an OPEN discrepancy already exists
// for the same (sku, location, type), its evidence and variance figures are
// overwritten in place and created=false is returned. A duplicate-key error
// from a concurrent writer is recovered the same way, never surfaced.
func UpsertDiscrepancy(ctx context.Context, d *Discrepancy) (bool, error) {
	db := config.GetDB()
	if db == nil {
		return false, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}

	existing, err := FindOpenDiscrepancy(ctx, d.Sku, d.LocationCode, d.Type)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return false, err
	}
	if existing != nil {
		return false, refreshOpenDiscrepancy(ctx, db, existing, d)
	}

	key := openKeyFor(d.Sku, d.LocationCode, d.Type)
	d.Status = DiscrepancyStatusOpen
	d.OpenKey = &key
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}
	err = db.WithContext(ctx).Create(d).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, &utils.DependencyError{Dependency: "database", Err: err}
	}

	// Lost the insert race; the winner's row is the one to update.
	existing, ferr := FindOpenDiscrepancy(ctx, d.Sku, d.LocationCode, d.Type)
	if ferr != nil {
		return false, ferr
	}
	return false, refreshOpenDiscrepancy(ctx, db, existing, d)
}

func refreshOpenDiscrepancy(ctx context.Context, db *gorm.DB, existing, incoming *Discrepancy) error {
	updates := map[string]interface{}{
		"severity":         incoming.Severity,
		"expected_qty":     incoming.ExpectedQty,
		"actual_qty":       incoming.ActualQty,
		"variance":         incoming.Variance,
		"variance_percent": incoming.VariancePercent,
		"variance_value":   incoming.VarianceValue,
		"description":      incoming.Description,
		"evidence":         incoming.Evidence,
	}
	if err := db.WithContext(ctx).Model(&Discrepancy{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return &utils.DependencyError{Dependency: "database", Err: err}
	}
	incoming.ID = existing.ID
	incoming.Status = existing.Status
	incoming.DetectedAt = existing.DetectedAt
	incoming.OpenKey = existing.OpenKey
	return nil
}

// GetDiscrepancy loads one discrepancy with its investigation history (newest
// first).
func GetDiscrepancy(ctx context.Context, id int) (*Discrepancy, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var d Discrepancy
	err := db.WithContext(ctx).
		Preload("Investigations", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at DESC")
		}).
		First(&d, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("discrepancy", id)
		}
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return &d, nil
}

// DiscrepancyFilter narrows list/count queries. Zero values mean "any".
type DiscrepancyFilter struct {
	Type         DiscrepancyType
	Severity     Severity
	Status       DiscrepancyStatus
	Sku          string
	LocationCode string
	DetectedFrom *time.Time
	DetectedTo   *time.Time
}

func (f DiscrepancyFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Sku != "" {
		q = q.Where("sku = ?", f.Sku)
	}
	if f.LocationCode != "" {
		q = q.Where("location_code = ?", f.LocationCode)
	}
	if f.DetectedFrom != nil {
		q = q.Where("detected_at >= ?", *f.DetectedFrom)
	}
	if f.DetectedTo != nil {
		q = q.Where("detected_at < ?", *f.DetectedTo)
	}
	return q
}

var discrepancySortColumns = map[string]string{
	"severity":    "severity",
	"detected_at": "detected_at",
	"variance":    "variance",
	"sku":         "sku",
	"type":        "type",
}

// ListDiscrepancies returns a page of discrepancies plus the unpaged total.
// The most recent investigation is preloaded for each row.
func ListDiscrepancies(ctx context.Context, filter DiscrepancyFilter, sortBy, sortOrder string, limit, offset int) ([]Discrepancy, int64, error) {
	db := config.GetDB()
	if db == nil {
		return nil, 0, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}

	col, ok := discrepancySortColumns[sortBy]
	if !ok {
		col = "detected_at"
	}
	order := "DESC"
	if sortOrder == "asc" {
		order = "ASC"
	}
	limit, offset = utils.NormalizePagination(limit, offset, config.SearchLimit, 500)

	var total int64
	if err := filter.apply(db.WithContext(ctx).Model(&Discrepancy{})).Count(&total).Error; err != nil {
		return nil, 0, &utils.DependencyError{Dependency: "database", Err: err}
	}

	var rows []Discrepancy
	err := filter.apply(db.WithContext(ctx)).
		Preload("Investigations", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at DESC")
		}).
		Order(fmt.Sprintf("%s %s, id %s", col, order, order)).
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return rows, total, nil
}

func CountDiscrepancies(ctx context.Context, filter DiscrepancyFilter) (int64, error) {
	db := config.GetDB()
	if db == nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var total int64
	if err := filter.apply(db.WithContext(ctx).Model(&Discrepancy{})).Count(&total).Error; err != nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return total, nil
}

// CountOtherOpenAtLocation counts OPEN discrepancies at a location excluding
// one discrepancy id (the one under investigation).
func CountOtherOpenAtLocation(ctx context.Context, locationCode string, excludeID int) (int64, error) {
	db := config.GetDB()
	if db == nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var n int64
	err := db.WithContext(ctx).Model(&Discrepancy{}).
		Where("location_code = ? AND status = ? AND id <> ?", locationCode, DiscrepancyStatusOpen, excludeID).
		Count(&n).Error
	if err != nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return n, nil
}

// CountDiscrepanciesAtLocations counts discrepancies detected since a cutoff
// across a set of locations.
func CountDiscrepanciesAtLocations(ctx context.Context, locationCodes []string, since time.Time) (int64, error) {
	if len(locationCodes) == 0 {
		return 0, nil
	}
	db := config.GetDB()
	if db == nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var n int64
	err := db.WithContext(ctx).Model(&Discrepancy{}).
		Where("location_code IN ? AND detected_at >= ?", locationCodes, since).
		Count(&n).Error
	if err != nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return n, nil
}

// CountOtherOpenForSku counts OPEN discrepancies for a sku excluding one
// discrepancy id.
func CountOtherOpenForSku(ctx context.Context, sku string, excludeID int) (int64, error) {
	db := config.GetDB()
	if db == nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var n int64
	err := db.WithContext(ctx).Model(&Discrepancy{}).
		Where("sku = ? AND status = ? AND id <> ?", sku, DiscrepancyStatusOpen, excludeID).
		Count(&n).Error
	if err != nil {
		return 0, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return n, nil
}

// DiscrepancyRegistry adapts the discrepancies table to the detector bank's
// registry interface.
type DiscrepancyRegistry struct{}

func (DiscrepancyRegistry) Upsert(ctx context.Context, d *Discrepancy) (bool, error) {
	return UpsertDiscrepancy(ctx, d)
}
