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
)

// Product is the catalog entry. Stock lives on InventoryVariant rows keyed
// by product id; the product row itself carries pricing and presentation.
type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Code         string          `gorm:"size:64;not null;unique" json:"code"`
	Category     string          `gorm:"size:128;index" json:"category"`
	Description  string          `gorm:"type:text" json:"description"`
	ImagesJson   string          `gorm:"type:text" json:"-"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Discount     decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"discount"`
	BulkDiscount decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"bulk_discount"`
	Trend        string          `gorm:"size:32;default:regular" json:"trend"`
	OfferExpiry  *time.Time      `json:"offer_expiry,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "boutique_inventory"
}

type NewProduct struct {
	Name         string                `json:"name" binding:"required" validate:"required"`
	Code         string                `json:"code" binding:"required" validate:"required"`
	Category     string                `json:"category"`
	Description  string                `json:"description"`
	Images       []string              `json:"images"`
	Price        decimal.Decimal       `json:"price" binding:"required"`
	Discount     decimal.Decimal       `json:"discount"`
	BulkDiscount decimal.Decimal       `json:"bulk_discount"`
	Trend        string                `json:"trend"`
	OfferExpiry  *time.Time            `json:"offer_expiry"`
	Variants     []NewInventoryVariant `json:"variants"`
}

type ProductWithVariants struct {
	Product
	Images   []string            `json:"images"`
	Variants []*InventoryVariant `json:"variants"`
}

func (input *NewProduct) validate() error {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Code) == "" {
		return fmt.Errorf("%w: name and code are required", utils.ErrorValidation)
	}
	if input.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", utils.ErrorValidation)
	}
	for _, v := range input.Variants {
		if strings.TrimSpace(v.Color) == "" || strings.TrimSpace(v.Size) == "" {
			return fmt.Errorf("%w: variant color and size are required", utils.ErrorValidation)
		}
		if v.Quantity < 0 {
			return fmt.Errorf("%w: variant quantity cannot be negative", utils.ErrorValidation)
		}
	}
	return nil
}

func (input *NewProduct) toProduct() (*Product, error) {
	imagesJson, err := utils.MarshalToJSON(input.Images)
	if err != nil {
		return nil, err
	}
	trend := input.Trend
	if trend == "" {
		trend = "regular"
	}
	return &Product{
		Name:         input.Name,
		Code:         input.Code,
		Category:     input.Category,
		Description:  input.Description,
		ImagesJson:   imagesJson,
		Price:        input.Price,
		Discount:     input.Discount,
		BulkDiscount: input.BulkDiscount,
		Trend:        trend,
		OfferExpiry:  input.OfferExpiry,
	}, nil
}

// CreateProductWithVariants writes the product and its initial variant rows
// in one transaction.
func CreateProductWithVariants(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	product, err := input.toProduct()
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		for _, v := range input.Variants {
			variant := InventoryVariant{
				ProductId: product.ID,
				Color:     v.Color,
				Size:      v.Size,
				Quantity:  v.Quantity,
			}
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProductWithVariants rewrites the product row and replaces its
// variant set with the supplied one.
func UpdateProductWithVariants(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	updated, err := input.toProduct()
	if err != nil {
		return nil, err
	}
	updated.ID = id

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Product
		if err := tx.Where("id = ?", id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		// Column-scoped update so the row's created_at survives the rewrite.
		err := tx.Model(&Product{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"name":          updated.Name,
				"code":          updated.Code,
				"category":      updated.Category,
				"description":   updated.Description,
				"images_json":   updated.ImagesJson,
				"price":         updated.Price,
				"discount":      updated.Discount,
				"bulk_discount": updated.BulkDiscount,
				"trend":         updated.Trend,
				"offer_expiry":  updated.OfferExpiry,
			}).Error
		if err != nil {
			return err
		}
		updated.CreatedAt = existing.CreatedAt
		if err := tx.Where("product_id = ?", id).Delete(&InventoryVariant{}).Error; err != nil {
			return err
		}
		for _, v := range input.Variants {
			variant := InventoryVariant{
				ProductId: id,
				Color:     v.Color,
				Size:      v.Size,
				Quantity:  v.Quantity,
			}
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func DeleteProduct(ctx context.Context, id int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Product{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		return tx.Where("product_id = ?", id).Delete(&InventoryVariant{}).Error
	})
}

func GetProduct(ctx context.Context, id int) (*ProductWithVariants, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	variants, err := ListVariantsByProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	images := []string{}
	if product.ImagesJson != "" {
		if err := utils.UnmarshalFromJSON([]byte(product.ImagesJson), &images); err != nil {
			images = []string{}
		}
	}

	return &ProductWithVariants{Product: product, Images: images, Variants: variants}, nil
}

func ListProducts(ctx context.Context, category string) ([]*Product, error) {
	var products []*Product
	db := config.GetDB().WithContext(ctx)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if err := db.Order("id DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
