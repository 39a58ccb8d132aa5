package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

// LineItem belongs to a cart (OrderID null) or to exactly one order.
// PriceAtSale/CostAtSale stay null until the item is sold, then freeze.
type LineItem struct {
	ID      uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID  *uuid.UUID `gorm:"column:cart_id;type:uuid;index"`
	OrderID *uuid.UUID `gorm:"column:order_id;type:uuid;index"`

	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Size      *string   `gorm:"column:size"`
	Color     *string   `gorm:"column:color"`
	Qty       int       `gorm:"column:qty;not null"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'initiated'"`

	PriceAtSaleCents *int `gorm:"column:price_at_sale_cents"`
	CostAtSaleCents  *int `gorm:"column:cost_at_sale_cents"`

	Product *Product `gorm:"foreignKey:ProductID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
