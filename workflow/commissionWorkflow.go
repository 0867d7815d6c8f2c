package workflow

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/models"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// ComputeCommission prices a settled order total at the given percentage
// rate. Division happens last so a 20,4 total keeps full precision.
func ComputeCommission(orderTotal, rate decimal.Decimal) decimal.Decimal {
	return orderTotal.Mul(rate).Div(decimal.NewFromInt(100))
}

// CreditCommission writes one commission row for the order and rolls the
// amount into the link aggregates. Must run inside the settlement
// transaction. The unique (order_id, referral_code) index makes a replayed
// credit collide; the collision is treated as already credited and the
// aggregates are left untouched.
func CreditCommission(tx *gorm.DB, logger *logrus.Logger, order *models.FullOrder, link *models.AffiliateLink) error {

	rate, err := models.GetCommissionRate(tx)
	if err != nil {
		config.LogError(logger, "commissionWorkflow.go", "CreditCommission", "GetCommissionRate", order.PhonepeOrderId, err)
		return err
	}
	amount := ComputeCommission(order.Total, rate)

	var locked models.AffiliateLink
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", link.ID).
		First(&locked).Error
	if err != nil {
		config.LogError(logger, "commissionWorkflow.go", "CreditCommission", "Lock AffiliateLink", link.ID, err)
		return err
	}

	commission := models.AffiliateCommission{
		AffiliateId:      locked.AffiliateId,
		ReferralCode:     locked.ReferralCode,
		OrderId:          order.PhonepeOrderId,
		ProductId:        locked.ProductId,
		OrderTotal:       order.Total,
		CommissionRate:   rate,
		CommissionAmount: amount,
	}
	if err := tx.Create(&commission).Error; err != nil {
		if isDuplicateKeyErr(err) {
			config.LogInfo(logger, "commissionWorkflow.go", "CreditCommission", "duplicate credit skipped", order.PhonepeOrderId)
			return nil
		}
		config.LogError(logger, "commissionWorkflow.go", "CreditCommission", "Create AffiliateCommission", commission, err)
		return err
	}

	err = tx.Model(&models.AffiliateLink{}).
		Where("id = ?", locked.ID).
		Updates(map[string]interface{}{
			"total_sales":       gorm.Expr("total_sales + 1"),
			"commission_earned": gorm.Expr("commission_earned + ?", amount),
		}).Error
	if err != nil {
		config.LogError(logger, "commissionWorkflow.go", "CreditCommission", "Update link aggregates", locked.ID, err)
		return err
	}
	return nil
}

// TrackSale credits a referral against an already settled order. Used when
// attribution arrives after the payment confirmation, e.g. a manually
// reported sale. The same unique index that guards the settlement path
// guards this one, so repeating the call cannot double credit.
func TrackSale(ctx context.Context, phonepeOrderId, referralCode string) error {
	logger := config.GetLogger()
	if phonepeOrderId == "" || referralCode == "" {
		return fmt.Errorf("%w: order id and referral code are required", utils.ErrorValidation)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var order models.FullOrder
		if err := tx.Where("phonepe_order_id = ?", phonepeOrderId).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if order.PaymentStatus != models.PaymentStatusDone {
			return fmt.Errorf("%w: order %s is not settled", utils.ErrorValidation, phonepeOrderId)
		}

		link, err := models.ResolveReferralCode(tx, referralCode)
		if err != nil {
			return err
		}

		items, err := order.CartItems()
		if err != nil {
			return err
		}
		inCart := false
		for _, item := range items {
			if item.ProductId == link.ProductId {
				inCart = true
				break
			}
		}
		if !inCart {
			return fmt.Errorf("%w: linked product not in order %s", utils.ErrorValidation, phonepeOrderId)
		}

		if err := AcquireAffiliateLock(tx, link.AffiliateId); err != nil {
			config.LogError(logger, "commissionWorkflow.go", "TrackSale", "AcquireAffiliateLock", link.AffiliateId, err)
			return err
		}
		defer ReleaseAffiliateLock(tx, link.AffiliateId)

		return CreditCommission(tx, logger, &order, link)
	})
}
