package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Investigation is a confirmed root-cause assignment against a discrepancy.
// A discrepancy can collect several over its life; the most recent is
// authoritative. AssignedTo names who follows up; AssignedBy records the
// authenticated actor when one is on the context.
type Investigation struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	DiscrepancyId int                 `gorm:"not null;index" json:"discrepancy_id"`
	RootCause     string              `gorm:"size:255;not null" json:"root_cause"`
	Category      RootCauseCategory   `gorm:"size:32;not null" json:"category"`
	Status        InvestigationStatus `gorm:"size:16;not null" json:"status"`
	Notes         *string             `gorm:"type:text" json:"notes,omitempty"`
	AssignedTo    *string             `gorm:"size:128;index" json:"assigned_to,omitempty"`
	AssignedBy    *int                `json:"assigned_by,omitempty"`
	ConfirmedAt   time.Time           `gorm:"not null" json:"confirmed_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// AssignRootCause records a confirmed root cause and transitions the
// discrepancy to INVESTIGATED in the same transaction. RESOLVED discrepancies
// reject further assignment; an already INVESTIGATED one accepts a revised
// cause without re-transitioning.
func AssignRootCause(ctx context.Context, discrepancyID int, rootCause string, category RootCauseCategory, notes, assignedTo *string) (*Investigation, error) {
	if rootCause == "" {
		return nil, utils.NewValidationError("rootCause", "must not be empty")
	}
	if !category.Valid() {
		return nil, utils.NewValidationError("category", "unknown root cause category")
	}
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}

	var inv *Investigation
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d Discrepancy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, discrepancyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("discrepancy", discrepancyID)
			}
			return &utils.DependencyError{Dependency: "database", Err: err}
		}
		if d.Status == DiscrepancyStatusResolved {
			return utils.NewValidationError("status", "discrepancy is already resolved")
		}

		inv = &Investigation{
			DiscrepancyId: d.ID,
			RootCause:     rootCause,
			Category:      category,
			Status:        InvestigationStatusConfirmed,
			Notes:         notes,
			AssignedTo:    assignedTo,
			ConfirmedAt:   time.Now().UTC(),
		}
		if userID, ok := utils.GetUserIdFromContext(ctx); ok {
			inv.AssignedBy = &userID
		}
		if err := tx.Create(inv).Error; err != nil {
			return &utils.DependencyError{Dependency: "database", Err: err}
		}

		updates := map[string]interface{}{
			"root_cause":          rootCause,
			"root_cause_category": category,
		}
		if d.Status == DiscrepancyStatusOpen {
			updates["status"] = DiscrepancyStatusInvestigated
			updates["open_key"] = nil
		}
		if err := tx.Model(&Discrepancy{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
			return &utils.DependencyError{Dependency: "database", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ResolveDiscrepancy transitions an INVESTIGATED discrepancy to RESOLVED.
func ResolveDiscrepancy(ctx context.Context, discrepancyID int) error {
	db := config.GetDB()
	if db == nil {
		return &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d Discrepancy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, discrepancyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("discrepancy", discrepancyID)
			}
			return &utils.DependencyError{Dependency: "database", Err: err}
		}
		if !d.Status.CanTransitionTo(DiscrepancyStatusResolved) {
			return utils.NewValidationError("status", "only investigated discrepancies can be resolved")
		}
		updates := map[string]interface{}{
			"status":   DiscrepancyStatusResolved,
			"open_key": nil,
		}
		if err := tx.Model(&Discrepancy{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
			return &utils.DependencyError{Dependency: "database", Err: err}
		}
		return nil
	})
}
