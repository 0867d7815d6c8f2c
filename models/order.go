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

// CartItem is one purchased line. Color and size select the inventory
// variant the settlement decrements.
type CartItem struct {
	ProductId int             `json:"product_id" binding:"required" validate:"required"`
	Color     string          `json:"color" binding:"required" validate:"required"`
	Size      string          `json:"size" binding:"required" validate:"required"`
	Quantity  int             `json:"quantity" binding:"required" validate:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
}

// FullOrder is created when payment is initiated and settled exactly once
// when the gateway confirms. phonepe_order_id is the idempotency key; the
// settlement flips payment_status pending -> done with a conditional update
// so a replayed confirmation matches zero rows.
type FullOrder struct {
	ID             int             `gorm:"primary_key" json:"id"`
	PhonepeOrderId string          `gorm:"size:64;not null;unique" json:"phonepe_order_id"`
	UserId         int             `gorm:"index" json:"user_id"`
	CustomerName   string          `gorm:"size:255" json:"customer_name"`
	Phone          string          `gorm:"size:32" json:"phone"`
	Address        string          `gorm:"size:1024" json:"address"`
	CartItemsJson  string          `gorm:"type:text" json:"-"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Shipping       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping"`
	Tax            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	ReferralCode   string          `gorm:"size:100;index" json:"referral_code"`
	PaymentStatus  PaymentStatus   `gorm:"size:16;not null;default:pending;index" json:"payment_status"`
	OrderStatus    OrderStatus     `gorm:"size:32;not null;default:pending" json:"order_status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FullOrder) TableName() string {
	return "full_orders"
}

// CartItems decodes the stored cart lines.
func (o *FullOrder) CartItems() ([]CartItem, error) {
	if strings.TrimSpace(o.CartItemsJson) == "" {
		return nil, nil
	}
	var items []CartItem
	if err := utils.UnmarshalFromJSON([]byte(o.CartItemsJson), &items); err != nil {
		return nil, err
	}
	return items, nil
}

type NewFullOrder struct {
	// Filled in by the initiation flow once the gateway assigns an id.
	PhonepeOrderId string          `json:"phonepe_order_id"`
	UserId         int             `json:"user_id"`
	CustomerName   string          `json:"customer_name" binding:"required" validate:"required"`
	Phone          string          `json:"phone" binding:"required" validate:"required"`
	Address        string          `json:"address" binding:"required" validate:"required"`
	CartItems      []CartItem      `json:"cart_items" binding:"required" validate:"required,min=1,dive"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total" binding:"required"`
	ReferralCode   string          `json:"referral_code"`
}

type OrderAnalytics struct {
	TotalOrders    int64           `json:"total_orders"`
	SettledOrders  int64           `json:"settled_orders"`
	PendingOrders  int64           `json:"pending_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	ReferredOrders int64           `json:"referred_orders"`
}

// InitiateOrder records the order at payment initiation with a pending
// payment status.
func InitiateOrder(ctx context.Context, input *NewFullOrder) (*FullOrder, error) {
	if input == nil || strings.TrimSpace(input.PhonepeOrderId) == "" {
		return nil, fmt.Errorf("%w: phonepe_order_id is required", utils.ErrorValidation)
	}
	if len(input.CartItems) == 0 {
		return nil, fmt.Errorf("%w: cart cannot be empty", utils.ErrorValidation)
	}
	if !input.Total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be positive", utils.ErrorValidation)
	}
	for _, item := range input.CartItems {
		if item.ProductId == 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: cart item needs product_id and positive quantity", utils.ErrorValidation)
		}
	}

	cartJson, err := utils.MarshalToJSON(input.CartItems)
	if err != nil {
		return nil, err
	}

	order := FullOrder{
		PhonepeOrderId: input.PhonepeOrderId,
		UserId:         input.UserId,
		CustomerName:   input.CustomerName,
		Phone:          input.Phone,
		Address:        input.Address,
		CartItemsJson:  cartJson,
		Subtotal:       input.Subtotal,
		Shipping:       input.Shipping,
		Tax:            input.Tax,
		Total:          input.Total,
		ReferralCode:   input.ReferralCode,
		PaymentStatus:  PaymentStatusPending,
		OrderStatus:    OrderStatusPending,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrderByPhonepeId(ctx context.Context, phonepeOrderId string) (*FullOrder, error) {
	var order FullOrder
	db := config.GetDB()
	err := db.WithContext(ctx).Where("phonepe_order_id = ?", phonepeOrderId).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

func ListOrders(ctx context.Context, paymentStatus PaymentStatus, userId int) ([]*FullOrder, error) {
	var orders []*FullOrder
	db := config.GetDB().WithContext(ctx)
	if paymentStatus != "" {
		db = db.Where("payment_status = ?", paymentStatus)
	}
	if userId != 0 {
		db = db.Where("user_id = ?", userId)
	}
	if err := db.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus moves an order through the fulfilment states. Payment
// status is owned by the settlement workflow and is not touched here.
func UpdateOrderStatus(ctx context.Context, phonepeOrderId string, status OrderStatus) (*FullOrder, error) {
	switch status {
	case OrderStatusPending, OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown order status %q", utils.ErrorValidation, status)
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&FullOrder{}).
		Where("phonepe_order_id = ?", phonepeOrderId).
		Update("order_status", status)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetOrderByPhonepeId(ctx, phonepeOrderId)
}

// GetOrderAnalytics aggregates the order book. Revenue counts settled
// orders only; pending and failed payments carry no revenue.
func GetOrderAnalytics(ctx context.Context) (*OrderAnalytics, error) {
	db := config.GetDB().WithContext(ctx)
	var row struct {
		TotalOrders    int64
		SettledOrders  int64
		PendingOrders  int64
		TotalRevenue   decimal.Decimal
		ReferredOrders int64
	}
	err := db.Model(&FullOrder{}).
		Select(`COUNT(*) AS total_orders,
			COALESCE(SUM(payment_status = 'done'),0) AS settled_orders,
			COALESCE(SUM(payment_status = 'pending'),0) AS pending_orders,
			COALESCE(SUM(CASE WHEN payment_status = 'done' THEN total ELSE 0 END),0) AS total_revenue,
			COALESCE(SUM(referral_code <> ''),0) AS referred_orders`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &OrderAnalytics{
		TotalOrders:    row.TotalOrders,
		SettledOrders:  row.SettledOrders,
		PendingOrders:  row.PendingOrders,
		TotalRevenue:   row.TotalRevenue,
		ReferredOrders: row.ReferredOrders,
	}, nil
}
