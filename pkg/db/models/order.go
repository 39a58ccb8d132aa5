package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	"github.com/adhamfarouk/pillcart-backend/pkg/types"
)

// Order is one checkout attempt progressing through the status lifecycle.
// Created on checkout-init, mutated only through state transitions, never
// hard-deleted.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string            `gorm:"column:order_number;not null;uniqueIndex"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'initiated'"`
	Paid        bool              `gorm:"column:paid;not null;default:false"`

	CustomerEmail   *string        `gorm:"column:customer_email"`
	ShippingAddress *types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`

	CouponID            *uuid.UUID `gorm:"column:coupon_id;type:uuid"`
	CouponDiscountCents int        `gorm:"column:coupon_discount_cents;not null;default:0"`
	GiftRuleID          *uuid.UUID `gorm:"column:gift_rule_id;type:uuid"`

	// PaymentReference is the paygate invoice id; set once on successful
	// invoice creation and reused after that.
	PaymentReference *string `gorm:"column:payment_reference"`
	PaymentURL       *string `gorm:"column:payment_url"`

	// Shipped flips false->true exactly once when the shipment is created.
	Shipped           bool    `gorm:"column:shipped;not null;default:false"`
	ShipmentReference *string `gorm:"column:shipment_reference"`
	ShipmentNumber    *string `gorm:"column:shipment_number"`

	Items     []LineItem       `gorm:"foreignKey:OrderID"`
	StatusLog []StatusLogEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
