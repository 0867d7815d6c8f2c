package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionSetting is a single-row table (id is always 1) holding the
// store-wide commission rate as a percentage.
type CommissionSetting struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DefaultCommissionRate applies when the settings row has never been written.
var DefaultCommissionRate = decimal.NewFromInt(5)

type NewCommissionSetting struct {
	CommissionRate decimal.Decimal `json:"commission_rate" binding:"required"`
}

// GetCommissionRate reads the rate inside the caller's transaction so every
// settlement prices against the rate in effect at that moment. A missing row
// falls back to the default rather than failing the settlement.
func GetCommissionRate(tx *gorm.DB) (decimal.Decimal, error) {
	var setting CommissionSetting
	err := tx.Where("id = ?", 1).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DefaultCommissionRate, nil
		}
		return decimal.Decimal{}, err
	}
	return setting.CommissionRate, nil
}

func GetCommissionSetting(ctx context.Context) (*CommissionSetting, error) {
	db := config.GetDB()
	var setting CommissionSetting
	err := db.WithContext(ctx).Where("id = ?", 1).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CommissionSetting{ID: 1, CommissionRate: DefaultCommissionRate}, nil
		}
		return nil, err
	}
	return &setting, nil
}

func UpdateCommissionRate(ctx context.Context, rate decimal.Decimal) (*CommissionSetting, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: commission rate must be between 0 and 100", utils.ErrorValidation)
	}

	setting := CommissionSetting{ID: 1, CommissionRate: rate}
	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commission_rate", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}
