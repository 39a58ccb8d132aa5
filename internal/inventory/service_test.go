package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lots := `
CREATE TABLE IF NOT EXISTS inventory_lots (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  unit_cost_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := db.Exec(lots).Error; err != nil {
		t.Fatalf("create inventory_lots: %v", err)
	}
	return db
}

func seedLot(t *testing.T, db *gorm.DB, variant Variant, qty int) models.InventoryLot {
	t.Helper()

	lot := models.InventoryLot{
		ID:        uuid.New(),
		ProductID: variant.ProductID,
		Size:      variant.Size,
		Color:     variant.Color,
		Quantity:  qty,
	}
	if err := db.Create(&lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}
	return lot
}

func TestReserveCheck(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New(), Size: "30", Color: ""}

	seedLot(t, db, variant, 3)
	seedLot(t, db, variant, 4)

	if err := ledger.ReserveCheck(ctx, db, variant, 7); err != nil {
		t.Fatalf("reserve check across lots: %v", err)
	}

	err := ledger.ReserveCheck(ctx, db, variant, 8)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// Read-only: nothing should have been consumed.
	available, err := ledger.AvailableQty(ctx, db, variant)
	if err != nil {
		t.Fatalf("available qty: %v", err)
	}
	if available != 7 {
		t.Fatalf("expected 7 available after checks, got %d", available)
	}
}

func TestReserveCheckDistinctVariants(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	productID := uuid.New()

	seedLot(t, db, Variant{ProductID: productID, Size: "30"}, 5)
	seedLot(t, db, Variant{ProductID: productID, Size: "60"}, 1)

	if err := ledger.ReserveCheck(ctx, db, Variant{ProductID: productID, Size: "30"}, 5); err != nil {
		t.Fatalf("size 30: %v", err)
	}
	err := ledger.ReserveCheck(ctx, db, Variant{ProductID: productID, Size: "60"}, 2)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock on size 60, got %v", err)
	}
}

func TestDecrementSpansLots(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New()}

	first := seedLot(t, db, variant, 2)
	second := seedLot(t, db, variant, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Decrement(ctx, tx, variant, 4)
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var a, b models.InventoryLot
	if err := db.First(&a, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load first lot: %v", err)
	}
	if err := db.First(&b, "id = ?", second.ID).Error; err != nil {
		t.Fatalf("load second lot: %v", err)
	}
	if a.Quantity != 0 {
		t.Fatalf("expected first lot drained, got %d", a.Quantity)
	}
	if b.Quantity != 3 {
		t.Fatalf("expected 3 left in second lot, got %d", b.Quantity)
	}
}

func TestDecrementExhausted(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New()}

	seedLot(t, db, variant, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Decrement(ctx, tx, variant, 5)
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInventoryExhausted) {
		t.Fatalf("expected inventory exhausted, got %v", err)
	}

	// The aborted transaction must leave stock untouched.
	available, aerr := ledger.AvailableQty(ctx, db, variant)
	if aerr != nil {
		t.Fatalf("available qty: %v", aerr)
	}
	if available != 3 {
		t.Fatalf("expected 3 available after rollback, got %d", available)
	}
}

func TestIncrementRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New(), Color: "blue"}

	seedLot(t, db, variant, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		if terr := ledger.Decrement(ctx, tx, variant, 5); terr != nil {
			return terr
		}
		return ledger.Increment(ctx, tx, variant, 5)
	})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}

	available, err := ledger.AvailableQty(ctx, db, variant)
	if err != nil {
		t.Fatalf("available qty: %v", err)
	}
	if available != 5 {
		t.Fatalf("expected 5 available after round trip, got %d", available)
	}
}

func TestIncrementCreatesLot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New(), Size: "90"}

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Increment(ctx, tx, variant, 2)
	})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}

	available, err := ledger.AvailableQty(ctx, db, variant)
	if err != nil {
		t.Fatalf("available qty: %v", err)
	}
	if available != 2 {
		t.Fatalf("expected 2 available, got %d", available)
	}
}

func TestInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	variant := Variant{ProductID: uuid.New()}

	for _, op := range []func() error{
		func() error { return ledger.ReserveCheck(ctx, db, variant, 0) },
		func() error { return ledger.Decrement(ctx, db, variant, -1) },
		func() error { return ledger.Increment(ctx, db, variant, 0) },
	} {
		if err := op(); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
}

func TestNewVariantNormalizes(t *testing.T) {
	t.Parallel()

	size := "30"
	v := NewVariant(uuid.New(), &size, nil)
	if v.Size != "30" || v.Color != "" {
		t.Fatalf("unexpected variant: %+v", v)
	}
}
