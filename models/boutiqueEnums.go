package models

// PaymentStatus tracks the gateway-confirmed payment lifecycle of an order.
// Terminal once non-pending; the settlement workflow is the only writer.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusDone    PaymentStatus = "done"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// OrderStatus tracks fulfilment after payment.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "order-cancelled"
)

type UserRole string

const (
	UserRoleAdmin             UserRole = "admin"
	UserRoleCustomer          UserRole = "customer"
	UserRoleAffiliater        UserRole = "affiliater"
	UserRolePendingAffiliater UserRole = "pending-affiliater"
)
