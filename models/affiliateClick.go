package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
)

// AffiliateClick is an append-only audit row, one per recorded redirect.
type AffiliateClick struct {
	ID           int       `gorm:"primary_key" json:"id"`
	LinkId       int       `gorm:"index;not null" json:"link_id"`
	ReferralCode string    `gorm:"size:100;index" json:"referral_code"`
	ClientIP     string    `gorm:"size:64" json:"client_ip"`
	UserAgent    string    `gorm:"size:512" json:"user_agent"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ListAffiliateClicks(ctx context.Context, linkId int, limit int) ([]*AffiliateClick, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var clicks []*AffiliateClick
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("link_id = ?", linkId).
		Order("id DESC").
		Limit(limit).
		Find(&clicks).Error
	if err != nil {
		return nil, err
	}
	return clicks, nil
}
