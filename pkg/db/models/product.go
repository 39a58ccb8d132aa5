package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the slice of the catalog the order core needs: current price,
// cost, and the two discount sources the price engine compares. Catalog
// management itself lives elsewhere.
type Product struct {
	ID                      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                    string    `gorm:"column:name;not null"`
	Category                string    `gorm:"column:category;not null;default:''"`
	PriceCents              int       `gorm:"column:price_cents;not null"`
	CostCents               int       `gorm:"column:cost_cents;not null;default:0"`
	DiscountPercent         int       `gorm:"column:discount_percent;not null;default:0"`
	CategoryDiscountPercent int       `gorm:"column:category_discount_percent;not null;default:0"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents applies the larger of the product-level and
// category-level discounts to the current price.
func (p Product) EffectivePriceCents() int {
	discount := p.DiscountPercent
	if p.CategoryDiscountPercent > discount {
		discount = p.CategoryDiscountPercent
	}
	if discount <= 0 {
		return p.PriceCents
	}
	if discount >= 100 {
		return 0
	}
	return p.PriceCents - p.PriceCents*discount/100
}
