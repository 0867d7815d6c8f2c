package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/shopspring/decimal"
)

// AffiliateCommission records one credit per settled referred order. The
// composite unique index on (order_id, referral_code) is the durable guard
// against double crediting; inserts that collide surface MySQL error 1062
// and the workflow treats them as already credited.
type AffiliateCommission struct {
	ID               int             `gorm:"primary_key" json:"id"`
	AffiliateId      int             `gorm:"index;not null" json:"affiliate_id"`
	ReferralCode     string          `gorm:"size:100;not null;index:uniq_order_commission,unique" json:"referral_code"`
	OrderId          string          `gorm:"size:64;not null;index:uniq_order_commission,unique" json:"order_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	OrderTotal       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"order_total"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"commission_amount"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func ListAffiliateCommissions(ctx context.Context, affiliateId int) ([]*AffiliateCommission, error) {
	var commissions []*AffiliateCommission
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateId).
		Order("created_at DESC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}
