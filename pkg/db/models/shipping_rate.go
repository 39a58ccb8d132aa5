package models

import "time"

// ShippingRate is the flat per-region shipping fee table. A region missing
// from the table resolves to a fee of zero; address completeness is enforced
// at a separate stage.
type ShippingRate struct {
	Region    string    `gorm:"column:region;primaryKey"`
	FeeCents  int       `gorm:"column:fee_cents;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
