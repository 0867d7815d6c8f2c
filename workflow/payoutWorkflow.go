package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/models"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayAffiliate settles the affiliate's accrued commission: sum what their
// links have earned, append the payout row, and zero the accruals, all in
// one transaction under the per-affiliate lock. A concurrent settlement
// crediting the same affiliate waits on the lock, so its credit lands either
// fully before the payout (and is included) or fully after (and survives the
// reset).
func PayAffiliate(ctx context.Context, affiliateId int, note string) (*models.AffiliatePayment, error) {
	logger := config.GetLogger()
	if affiliateId == 0 {
		return nil, fmt.Errorf("%w: affiliate id missing", utils.ErrorValidation)
	}

	var payment models.AffiliatePayment
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if err := AcquireAffiliateLock(tx, affiliateId); err != nil {
			config.LogError(logger, "payoutWorkflow.go", "PayAffiliate", "AcquireAffiliateLock", affiliateId, err)
			return err
		}
		defer ReleaseAffiliateLock(tx, affiliateId)

		var links []models.AffiliateLink
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("affiliate_id = ?", affiliateId).
			Find(&links).Error
		if err != nil {
			config.LogError(logger, "payoutWorkflow.go", "PayAffiliate", "Lock links", affiliateId, err)
			return err
		}

		total := decimal.NewFromInt(0)
		for _, link := range links {
			total = total.Add(link.CommissionEarned)
		}
		if !total.IsPositive() {
			return utils.ErrorNoBalance
		}

		payment = models.AffiliatePayment{
			AffiliateId: affiliateId,
			Amount:      total,
			Note:        note,
		}
		if err := tx.Create(&payment).Error; err != nil {
			config.LogError(logger, "payoutWorkflow.go", "PayAffiliate", "Create AffiliatePayment", payment, err)
			return err
		}

		err = tx.Model(&models.AffiliateLink{}).
			Where("affiliate_id = ?", affiliateId).
			Update("commission_earned", decimal.NewFromInt(0)).Error
		if err != nil {
			config.LogError(logger, "payoutWorkflow.go", "PayAffiliate", "Reset commission_earned", affiliateId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
