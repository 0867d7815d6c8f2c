package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateLink maps a referral code to the affiliate and the product it was
// generated for, and carries the running aggregates. referral_code is unique
// and immutable once issued; aggregates are mutated only by click recording
// and the commission workflow (a payout resets commission_earned).
type AffiliateLink struct {
	ID               int             `gorm:"primary_key" json:"id"`
	AffiliateId      int             `gorm:"index;not null" json:"affiliate_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	ReferralCode     string          `gorm:"size:100;not null;unique" json:"referral_code"`
	FullReferralLink string          `gorm:"size:2048" json:"full_referral_link"`
	TotalClicks      int             `gorm:"not null;default:0" json:"total_clicks"`
	TotalSales       int             `gorm:"not null;default:0" json:"total_sales"`
	CommissionEarned decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_earned"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAffiliateLink struct {
	AffiliateId int    `json:"affiliate_id" binding:"required" validate:"required"`
	ProductId   int    `json:"product_id" binding:"required" validate:"required"`
	ProductUrl  string `json:"product_url" binding:"required" validate:"required,url"`
}

type AffiliateSummary struct {
	AffiliateId     int             `json:"affiliate_id"`
	TotalLinks      int64           `json:"total_links"`
	TotalClicks     int64           `json:"total_clicks"`
	TotalSales      int64           `json:"total_sales"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// BuildReferralCode forms the AFF-{affiliate}-{product}-{timestamp} code.
// The millisecond timestamp component makes repeated calls for the same
// affiliate/product pair produce distinct codes.
func BuildReferralCode(affiliateId, productId int, now time.Time) string {
	return fmt.Sprintf("AFF-%d-%d-%d", affiliateId, productId, now.UnixMilli())
}

// AppendReferralParam attaches ?ref= or &ref= depending on whether the URL
// already carries a query string.
func AppendReferralParam(productUrl, referralCode string) string {
	sep := "?"
	if strings.Contains(productUrl, "?") {
		sep = "&"
	}
	return productUrl + sep + "ref=" + referralCode
}

func GenerateAffiliateLink(ctx context.Context, input *NewAffiliateLink) (*AffiliateLink, error) {
	if input == nil || input.AffiliateId == 0 || input.ProductId == 0 || strings.TrimSpace(input.ProductUrl) == "" {
		return nil, fmt.Errorf("%w: affiliate_id, product_id and product_url are required", utils.ErrorValidation)
	}

	code := BuildReferralCode(input.AffiliateId, input.ProductId, time.Now())
	link := AffiliateLink{
		AffiliateId:      input.AffiliateId,
		ProductId:        input.ProductId,
		ReferralCode:     code,
		FullReferralLink: AppendReferralParam(input.ProductUrl, code),
		CommissionEarned: decimal.NewFromInt(0),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// RecordClick bumps total_clicks and appends one AffiliateClick row. Unknown
// codes return ErrorRecordNotFound; callers on the redirect path treat that
// as best-effort and keep serving the product page.
func RecordClick(ctx context.Context, referralCode, clientIP, userAgent string) error {
	if strings.TrimSpace(referralCode) == "" {
		return fmt.Errorf("%w: referral code missing", utils.ErrorValidation)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link AffiliateLink
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("referral_code = ?", referralCode).
			First(&link).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		err = tx.Model(&AffiliateLink{}).
			Where("id = ?", link.ID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + 1")).Error
		if err != nil {
			return err
		}

		click := AffiliateClick{
			LinkId:       link.ID,
			ReferralCode: referralCode,
			ClientIP:     clientIP,
			UserAgent:    userAgent,
		}
		return tx.Create(&click).Error
	})
}

// ResolveReferralCode looks a code up for the settlement workflow. Runs on
// the caller's transaction so attribution sees the same snapshot the
// settlement writes against.
func ResolveReferralCode(tx *gorm.DB, referralCode string) (*AffiliateLink, error) {
	var link AffiliateLink
	err := tx.Where("referral_code = ?", referralCode).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &link, nil
}

func ListAffiliateLinks(ctx context.Context, affiliateId int) ([]*AffiliateLink, error) {
	var links []*AffiliateLink
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateId).
		Order("id DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// GetAffiliateSummary aggregates clicks, sales and outstanding commission
// across all of one affiliate's links.
func GetAffiliateSummary(ctx context.Context, affiliateId int) (*AffiliateSummary, error) {
	db := config.GetDB()
	var row struct {
		TotalLinks      int64
		TotalClicks     int64
		TotalSales      int64
		TotalCommission decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&AffiliateLink{}).
		Select("COUNT(*) AS total_links, COALESCE(SUM(total_clicks),0) AS total_clicks, COALESCE(SUM(total_sales),0) AS total_sales, COALESCE(SUM(commission_earned),0) AS total_commission").
		Where("affiliate_id = ?", affiliateId).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &AffiliateSummary{
		AffiliateId:     affiliateId,
		TotalLinks:      row.TotalLinks,
		TotalClicks:     row.TotalClicks,
		TotalSales:      row.TotalSales,
		TotalCommission: row.TotalCommission,
	}, nil
}

// ListAffiliateSummaries returns one aggregate row per affiliate that has at
// least one link.
func ListAffiliateSummaries(ctx context.Context) ([]*AffiliateSummary, error) {
	db := config.GetDB()
	var rows []*AffiliateSummary
	err := db.WithContext(ctx).Model(&AffiliateLink{}).
		Select("affiliate_id, COUNT(*) AS total_links, COALESCE(SUM(total_clicks),0) AS total_clicks, COALESCE(SUM(total_sales),0) AS total_sales, COALESCE(SUM(commission_earned),0) AS total_commission").
		Group("affiliate_id").
		Order("total_commission DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
