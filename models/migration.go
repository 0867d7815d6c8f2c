package models

import (
	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&User{},
		&Product{},
		&InventoryVariant{},
		&FullOrder{},
		&AffiliateLink{},
		&AffiliateClick{},
		&AffiliateCommission{},
		&AffiliatePayment{},
		&CommissionSetting{},
	)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "MigrateTable", "auto migrate", nil, err)
	}
	utils.ErrorPanic(err)
}
