package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryVariant tracks the on-hand quantity of one color/size combination
// of a product. Stock never goes below zero; oversells clamp at zero unless
// strict enforcement is switched on.
type InventoryVariant struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ProductId int       `gorm:"index:idx_variant_lookup;not null" json:"product_id"`
	Color     string    `gorm:"size:64;index:idx_variant_lookup" json:"color"`
	Size      string    `gorm:"size:32;index:idx_variant_lookup" json:"size"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryVariant struct {
	Color    string `json:"color" binding:"required" validate:"required"`
	Size     string `json:"size" binding:"required" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

var ErrInsufficientStock = errors.New("insufficient stock for variant")

// ClampQuantity applies a decrement without letting stock go negative.
func ClampQuantity(current, requested int) int {
	next := current - requested
	if next < 0 {
		return 0
	}
	return next
}

// DecrementVariantStock locks the variant row and applies a clamped
// decrement. A missing variant is logged and skipped so one stale cart line
// cannot block a paid order; under strict enforcement a short stock row
// fails the transaction instead of clamping.
func DecrementVariantStock(tx *gorm.DB, logger *logrus.Logger, productId int, color, size string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	var variant InventoryVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND color = ? AND size = ?", productId, color, size).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(logrus.Fields{
				"module":     "models",
				"product_id": productId,
				"color":      color,
				"size":       size,
			}).Warn("variant missing during stock decrement, skipping")
			return nil
		}
		return err
	}

	if variant.Quantity < quantity && config.StrictStockEnforcement() {
		return fmt.Errorf("%w: product %d %s/%s has %d, need %d",
			ErrInsufficientStock, productId, color, size, variant.Quantity, quantity)
	}

	return tx.Model(&InventoryVariant{}).
		Where("id = ?", variant.ID).
		UpdateColumn("quantity", ClampQuantity(variant.Quantity, quantity)).Error
}

func ListVariantsByProduct(ctx context.Context, productId int) ([]*InventoryVariant, error) {
	var variants []*InventoryVariant
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("color, size").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}
