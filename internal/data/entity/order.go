package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	BaseNoDelete
	UserID          uuid.UUID       `db:"user_id"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	ShippingAddress string          `db:"shipping_address"`
	Status          OrderStatus     `db:"status"`
	Items           []*OrderItem    `db:"-"`
}

// OrderItem stores the product price at order time; it is never recomputed
// from the live catalog.
type OrderItem struct {
	BaseSimple
	OrderID   uuid.UUID       `db:"order_id"`
	ProductID uuid.UUID       `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Product   *Product        `db:"-"`
}

// Subtotal is price times quantity.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
