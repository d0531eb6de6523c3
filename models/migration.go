package models

import (
	"log"

	"bitbucket.org/flowlogic/wms_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&InventorySnapshot{}, &TransactionSnapshot{}, &AdjustmentSnapshot{}, &CycleCountSnapshot{},
		&Discrepancy{}, &Investigation{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
