package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
)

// Variant identifies a (product, size, color) stock bucket. Size and color
// are normalized to "" so nullable line-item attributes and non-null lot
// columns compare consistently.
type Variant struct {
	ProductID uuid.UUID
	Size      string
	Color     string
}

// NewVariant normalizes nullable size/color into a Variant key.
func NewVariant(productID uuid.UUID, size, color *string) Variant {
	v := Variant{ProductID: productID}
	if size != nil {
		v.Size = *size
	}
	if color != nil {
		v.Color = *color
	}
	return v
}

func (v Variant) String() string {
	return fmt.Sprintf("%s/%s/%s", v.ProductID, v.Size, v.Color)
}

// Ledger is the authoritative source of per-variant stock. ReserveCheck is
// the read-only validation used at checkout; Decrement is the only mutating,
// stock-consuming operation and runs at delivery time. All mutations must be
// called inside the caller's transaction so a failure aborts the whole
// transition.
type Ledger interface {
	ReserveCheck(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error
	Decrement(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error
	Increment(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error
	AvailableQty(ctx context.Context, tx *gorm.DB, variant Variant) (int, error)
}

type ledger struct{}

// NewLedger returns the gorm-backed inventory ledger.
func NewLedger() Ledger {
	return ledger{}
}

func (ledger) AvailableQty(ctx context.Context, tx *gorm.DB, variant Variant) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	var available int
	err := tx.WithContext(ctx).
		Model(&models.InventoryLot{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND size = ? AND color = ?", variant.ProductID, variant.Size, variant.Color).
		Scan(&available).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum lot quantities")
	}
	return available, nil
}

func (l ledger) ReserveCheck(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	available, err := l.AvailableQty(ctx, tx, variant)
	if err != nil {
		return err
	}
	if available < qty {
		return stockError(pkgerrors.CodeInsufficientStock, variant, qty, available)
	}
	return nil
}

func (l ledger) Decrement(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	var lots []models.InventoryLot
	err := tx.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color = ? AND quantity > 0", variant.ProductID, variant.Size, variant.Color).
		Order("created_at ASC").
		Find(&lots).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lots")
	}

	remaining := qty
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}

		// The quantity guard keeps the decrement atomic: a concurrent
		// consumer that drained this lot between the read and the write
		// leaves RowsAffected at zero instead of driving quantity negative.
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_lots
			SET quantity = quantity - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND quantity >= ?
		`, take, lot.ID, take)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement lot")
		}
		if res.RowsAffected == 0 {
			return stockError(pkgerrors.CodeInventoryExhausted, variant, qty, 0)
		}
		remaining -= take
	}

	if remaining > 0 {
		available, availErr := l.AvailableQty(ctx, tx, variant)
		if availErr != nil {
			available = 0
		}
		return stockError(pkgerrors.CodeInventoryExhausted, variant, qty, available)
	}
	return nil
}

func (ledger) Increment(ctx context.Context, tx *gorm.DB, variant Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	var lot models.InventoryLot
	err := tx.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color = ?", variant.ProductID, variant.Size, variant.Color).
		Order("created_at ASC").
		First(&lot).Error
	if err == gorm.ErrRecordNotFound {
		lot = models.InventoryLot{
			ProductID: variant.ProductID,
			Size:      variant.Size,
			Color:     variant.Color,
			Quantity:  qty,
		}
		if createErr := tx.WithContext(ctx).Create(&lot).Error; createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create restock lot")
		}
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restock lot")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_lots
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, lot.ID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment lot")
	}
	return nil
}

func stockError(code pkgerrors.Code, variant Variant, requested, available int) error {
	return pkgerrors.New(code, fmt.Sprintf("variant %s: requested %d, available %d", variant, requested, available)).
		WithDetails(map[string]any{
			"product_id": variant.ProductID,
			"size":       variant.Size,
			"color":      variant.Color,
			"requested":  requested,
			"available":  available,
		})
}
