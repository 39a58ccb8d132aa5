package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLot is a stock batch for a (product, size, color) variant.
// Size and color are normalized to "" for variant matching; multiple lots may
// exist per variant from distinct acquisition batches.
type InventoryLot struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_lots_variant"`
	Size          string    `gorm:"column:size;not null;default:'';index:idx_lots_variant"`
	Color         string    `gorm:"column:color;not null;default:'';index:idx_lots_variant"`
	Quantity      int       `gorm:"column:quantity;not null;default:0"`
	UnitCostCents int       `gorm:"column:unit_cost_cents;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
