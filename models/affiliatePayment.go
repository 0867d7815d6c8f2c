package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/shopspring/decimal"
)

// AffiliatePayment is the append-only payout history. A row is written in
// the same transaction that resets the affiliate's accrued commission.
type AffiliatePayment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	AffiliateId int             `gorm:"index;not null" json:"affiliate_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Note        string          `gorm:"size:512" json:"note"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func ListAffiliatePayments(ctx context.Context, affiliateId int) ([]*AffiliatePayment, error) {
	var payments []*AffiliatePayment
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateId).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
