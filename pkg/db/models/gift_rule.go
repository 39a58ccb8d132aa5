package models

import (
	"time"

	"github.com/google/uuid"
)

// GiftRule is an automatic promotional discount applied when the order
// subtotal falls inside the [min, max] band. Unlike a coupon it is not
// consumed; the best match is reselected on most pre-payment transitions.
type GiftRule struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string     `gorm:"column:name;not null"`
	PercentOff    int        `gorm:"column:percent_off;not null"`
	MinOrderCents int        `gorm:"column:min_order_cents;not null"`
	MaxOrderCents int        `gorm:"column:max_order_cents;not null"`
	StartsAt      *time.Time `gorm:"column:starts_at"`
	EndsAt        *time.Time `gorm:"column:ends_at"`
	Active        bool       `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
