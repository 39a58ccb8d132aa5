package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a user-presented discount code with a bounded number of uses.
// AvailableUses is decremented atomically on application and never below zero.
type Coupon struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string     `gorm:"column:code;not null;uniqueIndex"`
	PercentOff    int        `gorm:"column:percent_off;not null"`
	StartsAt      *time.Time `gorm:"column:starts_at"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	AvailableUses int        `gorm:"column:available_uses;not null;default:0"`
	OwnerID       *uuid.UUID `gorm:"column:owner_id;type:uuid"`
	MinOrderCents *int       `gorm:"column:min_order_cents"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
