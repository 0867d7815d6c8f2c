package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/models"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementInput carries the confirmation payload from the gateway
// callback. All fields are written onto the order inside the settlement
// transaction; a nil input settles against the snapshot stored at
// initiation (the verify/poll path).
type SettlementInput struct {
	CustomerName string            `json:"customer_name"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address"`
	CartItems    []models.CartItem `json:"cart_items"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	Shipping     decimal.Decimal   `json:"shipping"`
	Tax          decimal.Decimal   `json:"tax"`
	Total        decimal.Decimal   `json:"total"`
	ReferralCode string            `json:"referral_code"`
}

// ConfirmAndSettle applies the one-shot settlement for a confirmed payment:
// mark the order done, decrement the sold variants, and credit the referring
// affiliate when the referral is attributable. Everything runs in a single
// transaction keyed by the gateway order id; a replayed confirmation finds
// the conditional status update matching zero rows and returns the already
// settled order without side effects.
func ConfirmAndSettle(ctx context.Context, phonepeOrderId string, input *SettlementInput) (*models.FullOrder, error) {
	logger := config.GetLogger()
	if strings.TrimSpace(phonepeOrderId) == "" {
		return nil, fmt.Errorf("%w: order id missing", utils.ErrorValidation)
	}
	if input != nil {
		if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.Phone) == "" {
			return nil, fmt.Errorf("%w: customer name and phone are required", utils.ErrorValidation)
		}
		if len(input.CartItems) == 0 {
			return nil, fmt.Errorf("%w: cart cannot be empty", utils.ErrorValidation)
		}
	}

	var settled models.FullOrder
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderLock(tx, phonepeOrderId); err != nil {
			config.LogError(logger, "settlementWorkflow.go", "ConfirmAndSettle", "Acquire order lock", phonepeOrderId, err)
			return err
		}
		defer ReleaseOrderLock(tx, phonepeOrderId)

		updates := map[string]interface{}{"payment_status": models.PaymentStatusDone}
		if input != nil {
			cartJson, err := utils.MarshalToJSON(input.CartItems)
			if err != nil {
				return err
			}
			updates["customer_name"] = input.CustomerName
			updates["phone"] = input.Phone
			updates["address"] = input.Address
			updates["cart_items_json"] = cartJson
			updates["subtotal"] = input.Subtotal
			updates["shipping"] = input.Shipping
			updates["tax"] = input.Tax
			updates["total"] = input.Total
			if input.ReferralCode != "" {
				updates["referral_code"] = input.ReferralCode
			}
		}

		result := tx.Model(&models.FullOrder{}).
			Where("phonepe_order_id = ? AND payment_status = ?", phonepeOrderId, models.PaymentStatusPending).
			Updates(updates)
		if result.Error != nil {
			config.LogError(logger, "settlementWorkflow.go", "ConfirmAndSettle", "Mark order done", phonepeOrderId, result.Error)
			return result.Error
		}

		if result.RowsAffected == 0 {
			// Either unknown or already settled. Unknown fails; already
			// settled succeeds idempotently.
			var existing models.FullOrder
			err := tx.Where("phonepe_order_id = ?", phonepeOrderId).First(&existing).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.ErrorRecordNotFound
				}
				return err
			}
			settled = existing
			return nil
		}

		var order models.FullOrder
		if err := tx.Where("phonepe_order_id = ?", phonepeOrderId).First(&order).Error; err != nil {
			config.LogError(logger, "settlementWorkflow.go", "ConfirmAndSettle", "Reload order", phonepeOrderId, err)
			return err
		}

		items, err := order.CartItems()
		if err != nil {
			config.LogError(logger, "settlementWorkflow.go", "ConfirmAndSettle", "Decode cart items", order.CartItemsJson, err)
			return err
		}
		for _, item := range items {
			err := models.DecrementVariantStock(tx, logger, item.ProductId, item.Color, item.Size, item.Quantity)
			if err != nil {
				config.LogError(logger, "settlementWorkflow.go", "ConfirmAndSettle", "DecrementVariantStock", item, err)
				return err
			}
		}

		if order.ReferralCode != "" {
			if err := settleReferral(tx, &order, items); err != nil {
				return err
			}
		}

		settled = order
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, utils.ErrorValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorSettlementFailed, err)
	}
	return &settled, nil
}

// settleReferral credits the affiliate when the code resolves and the linked
// product is actually in the cart. An unknown or unrelated code is logged
// and dropped rather than failing a paid order.
func settleReferral(tx *gorm.DB, order *models.FullOrder, items []models.CartItem) error {
	logger := config.GetLogger()

	link, err := models.ResolveReferralCode(tx, order.ReferralCode)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			config.LogInfo(logger, "settlementWorkflow.go", "settleReferral", "unknown referral code ignored", order.ReferralCode)
			return nil
		}
		config.LogError(logger, "settlementWorkflow.go", "settleReferral", "ResolveReferralCode", order.ReferralCode, err)
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
		config.LogInfo(logger, "settlementWorkflow.go", "settleReferral", "linked product not in cart, no credit", order.ReferralCode)
		return nil
	}

	if err := AcquireAffiliateLock(tx, link.AffiliateId); err != nil {
		config.LogError(logger, "settlementWorkflow.go", "settleReferral", "AcquireAffiliateLock", link.AffiliateId, err)
		return err
	}
	defer ReleaseAffiliateLock(tx, link.AffiliateId)

	return CreditCommission(tx, logger, order, link)
}

// MarkOrderFailed records a gateway-rejected payment. Failed orders keep
// their stock and never earn commission.
func MarkOrderFailed(ctx context.Context, phonepeOrderId string) (*models.FullOrder, error) {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&models.FullOrder{}).
		Where("phonepe_order_id = ? AND payment_status = ?", phonepeOrderId, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if result.Error != nil {
		return nil, result.Error
	}
	order, err := models.GetOrderByPhonepeId(ctx, phonepeOrderId)
	if err != nil {
		return nil, err
	}
	return order, nil
}
