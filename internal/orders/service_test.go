package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/internal/coupons"
	"github.com/adhamfarouk/pillcart-backend/internal/inventory"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/types"
)

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  cost_cents INTEGER NOT NULL DEFAULT 0,
  discount_percent INTEGER NOT NULL DEFAULT 0,
  category_discount_percent INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS inventory_lots (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  unit_cost_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  percent_off INTEGER NOT NULL,
  starts_at DATETIME,
  expires_at DATETIME,
  available_uses INTEGER NOT NULL DEFAULT 0 CHECK (available_uses >= 0),
  owner_id TEXT,
  min_order_cents INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS gift_rules (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  percent_off INTEGER NOT NULL,
  min_order_cents INTEGER NOT NULL,
  max_order_cents INTEGER NOT NULL,
  starts_at DATETIME,
  ends_at DATETIME,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS shipping_rates (
  region TEXT PRIMARY KEY,
  fee_cents INTEGER NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'initiated',
  paid INTEGER NOT NULL DEFAULT 0,
  customer_email TEXT,
  shipping_address TEXT,
  coupon_id TEXT,
  coupon_discount_cents INTEGER NOT NULL DEFAULT 0,
  gift_rule_id TEXT,
  payment_reference TEXT,
  payment_url TEXT,
  shipped INTEGER NOT NULL DEFAULT 0,
  shipment_reference TEXT,
  shipment_number TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS line_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT,
  order_id TEXT,
  product_id TEXT NOT NULL,
  size TEXT,
  color TEXT,
  qty INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'initiated',
  price_at_sale_cents INTEGER,
  cost_at_sale_cents INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS status_log_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  recorded_at DATETIME NOT NULL,
  UNIQUE (order_id, status)
);`,
	`CREATE TABLE IF NOT EXISTS reconciliation_records (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  provider TEXT NOT NULL,
  provider_reference TEXT NOT NULL,
  payload TEXT,
  received_at DATETIME
);`,
}

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, ddl := range testSchema {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	rates, err := pricing.NewRateTable(db)
	if err != nil {
		t.Fatalf("rate table: %v", err)
	}
	log := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(testTxRunner{db: db}, NewRepository(db), inventory.NewLedger(), coupons.NewService(), rates, log, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, priceCents, costCents, stock int) models.Product {
	t.Helper()

	product := models.Product{
		ID:         uuid.New(),
		Name:       "Test Product",
		PriceCents: priceCents,
		CostCents:  costCents,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if stock > 0 {
		lot := models.InventoryLot{
			ID:        uuid.New(),
			ProductID: product.ID,
			Quantity:  stock,
		}
		if err := db.Create(&lot).Error; err != nil {
			t.Fatalf("seed lot: %v", err)
		}
	}
	return product
}

func lotQuantity(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()

	var total int
	if err := db.Model(&models.InventoryLot{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ?", productID).
		Scan(&total).Error; err != nil {
		t.Fatalf("sum lots: %v", err)
	}
	return total
}

func testAddress() types.Address {
	return types.Address{
		Line1:  "14 Tahrir Square",
		City:   "Cairo",
		Region: "Cairo",
		Phone:  "+201000000000",
		Name:   "Test Customer",
	}
}

func TestOrderLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 500, 200, 10)
	if err := db.Create(&models.GiftRule{
		ID: uuid.New(), Name: "spring", PercentOff: 10,
		MinOrderCents: 500, MaxOrderCents: 2000, Active: true,
	}).Error; err != nil {
		t.Fatalf("seed gift rule: %v", err)
	}
	if err := db.Create(&models.Coupon{
		ID: uuid.New(), Code: "FIVE", PercentOff: 5, AvailableUses: 2,
	}).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	if err := db.Create(&models.ShippingRate{Region: "Cairo", FeeCents: 50}).Error; err != nil {
		t.Fatalf("seed rate: %v", err)
	}

	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if order.Status != enums.OrderStatusInitiated {
		t.Fatalf("expected initiated, got %s", order.Status)
	}
	if len(order.OrderNumber) == 0 {
		t.Fatal("expected an order number")
	}
	if order.GiftRuleID == nil {
		t.Fatal("expected gift rule selected at init")
	}

	order, err = svc.SetAddress(ctx, order.ID, testAddress())
	if err != nil {
		t.Fatalf("set address: %v", err)
	}
	if order.Status != enums.OrderStatusWaiting {
		t.Fatalf("expected waiting, got %s", order.Status)
	}

	order, err = svc.ApplyCoupon(ctx, order.ID, "FIVE", nil)
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if order.CouponDiscountCents != 50 {
		t.Fatalf("expected frozen coupon discount 50, got %d", order.CouponDiscountCents)
	}

	breakdown, err := svc.Quote(ctx, order.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if breakdown.SubtotalCents != 1000 || breakdown.GiftDiscountCents != 100 ||
		breakdown.CouponDiscountCents != 50 || breakdown.ShippingFeeCents != 50 ||
		breakdown.TotalCents != 900 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}

	paid, err := svc.MarkPaid(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.Applied || !paid.Order.Paid || paid.Order.Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected paid state: applied=%v %+v", paid.Applied, paid.Order)
	}
	if paid.Order.GiftRuleID != nil {
		t.Fatal("expected gift rule cleared on payment")
	}
	for _, item := range paid.Order.Items {
		if item.PriceAtSaleCents == nil || *item.PriceAtSaleCents != 500 {
			t.Fatalf("expected stamped price 500, got %v", item.PriceAtSaleCents)
		}
		if item.CostAtSaleCents == nil || *item.CostAtSaleCents != 200 {
			t.Fatalf("expected stamped cost 200, got %v", item.CostAtSaleCents)
		}
	}

	again, err := svc.MarkPaid(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark paid twice: %v", err)
	}
	if again.Applied {
		t.Fatal("expected second mark-paid to be a no-op")
	}

	// Stock is only consumed at delivery.
	if got := lotQuantity(t, db, product.ID); got != 10 {
		t.Fatalf("expected untouched stock 10, got %d", got)
	}

	shipped, err := svc.MarkUnderDelivery(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark under delivery: %v", err)
	}
	if !shipped.Applied || shipped.Order.Status != enums.OrderStatusUnderDelivery {
		t.Fatalf("unexpected under-delivery state: %+v", shipped)
	}

	delivered, err := svc.MarkDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if !delivered.Applied {
		t.Fatal("expected delivery applied")
	}
	if got := lotQuantity(t, db, product.ID); got != 8 {
		t.Fatalf("expected stock 8 after delivery, got %d", got)
	}

	redelivered, err := svc.MarkDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark delivered twice: %v", err)
	}
	if redelivered.Applied {
		t.Fatal("expected duplicate delivery to be a no-op")
	}
	if got := lotQuantity(t, db, product.ID); got != 8 {
		t.Fatalf("expected stock still 8, got %d", got)
	}

	refused, err := svc.MarkRefused(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark refused: %v", err)
	}
	if !refused.Applied || refused.Order.Status != enums.OrderStatusRefused {
		t.Fatalf("unexpected refused state: %+v", refused)
	}
	if got := lotQuantity(t, db, product.ID); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}
}

func TestInitiateCheckoutReportsAllViolations(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	scarce := seedProduct(t, db, 100, 50, 1)
	missing := seedProduct(t, db, 100, 50, 0)

	_, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: scarce.ID, Qty: 3},
			{ProductID: missing.ID, Qty: 1},
		},
	})
	if err == nil {
		t.Fatal("expected stock violations")
	}
	violations := multierr.Errors(err)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(violations), err)
	}
	for _, v := range violations {
		if !pkgerrors.IsCode(v, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("expected insufficient stock, got %v", v)
		}
	}

	var count int64
	if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no order created, got %d", count)
	}
}

func TestCancelBeforeDeliveryKeepsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)
	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	canceled, err := svc.MarkCanceled(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !canceled.Applied || canceled.Order.Status != enums.OrderStatusCanceled {
		t.Fatalf("unexpected cancel state: %+v", canceled)
	}
	// Nothing was decremented pre-delivery, so nothing is restored.
	if got := lotQuantity(t, db, product.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}

	if _, err := svc.MarkDelivered(ctx, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict delivering a canceled order, got %v", err)
	}
}

// Sequential stand-in for two deliveries racing over the last units.
// The guarded UPDATE makes the loser identical whichever transaction
// commits second, so ordering the calls checks the same path; sqlite
// would serialize real goroutines on the shared connection anyway.
func TestDeliveryRaceOnLastUnits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)

	first, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 5}},
	})
	if err != nil {
		t.Fatalf("initiate first: %v", err)
	}
	second, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 5}},
	})
	if err != nil {
		t.Fatalf("initiate second: %v", err)
	}

	if _, err := svc.MarkDelivered(ctx, first.ID); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	_, err = svc.MarkDelivered(ctx, second.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInventoryExhausted) {
		t.Fatalf("expected inventory exhausted, got %v", err)
	}

	loaded, err := svc.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("reload second: %v", err)
	}
	if loaded.Status != enums.OrderStatusInitiated {
		t.Fatalf("expected failed delivery to keep prior status, got %s", loaded.Status)
	}
}

func TestApplyCouponTwice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)
	if err := db.Create(&models.Coupon{
		ID: uuid.New(), Code: "ONCE", PercentOff: 10, AvailableUses: 5,
	}).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.ApplyCoupon(ctx, order.ID, "ONCE", nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	_, err = svc.ApplyCoupon(ctx, order.ID, "ONCE", nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeCouponInvalid) {
		t.Fatalf("expected coupon invalid on second apply, got %v", err)
	}
}

func TestSetAddressAfterPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)
	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	_, err = svc.SetAddress(ctx, order.ID, testAddress())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRemoveCouponRestoresUse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)
	coupon := models.Coupon{ID: uuid.New(), Code: "SOLO", PercentOff: 10, AvailableUses: 1}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.ApplyCoupon(ctx, order.ID, "SOLO", nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	order, err = svc.RemoveCoupon(ctx, order.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if order.CouponID != nil || order.CouponDiscountCents != 0 {
		t.Fatalf("expected coupon cleared: %+v", order)
	}

	var stored models.Coupon
	if err := db.First(&stored, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if stored.AvailableUses != 1 {
		t.Fatalf("expected use restored, got %d", stored.AvailableUses)
	}
}

func TestStatusLogUpsert(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 100, 50, 5)
	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Re-entering waiting must refresh the entry, not duplicate it.
	if _, err := svc.SetAddress(ctx, order.ID, testAddress()); err != nil {
		t.Fatalf("first set address: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := svc.SetAddress(ctx, order.ID, testAddress()); err != nil {
		t.Fatalf("second set address: %v", err)
	}

	var entries []models.StatusLogEntry
	if err := db.Where("order_id = ?", order.ID).Find(&entries).Error; err != nil {
		t.Fatalf("load log: %v", err)
	}
	byStatus := make(map[enums.OrderStatus]int)
	for _, entry := range entries {
		byStatus[entry.Status]++
	}
	if byStatus[enums.OrderStatusWaiting] != 1 {
		t.Fatalf("expected exactly one waiting entry, got %d", byStatus[enums.OrderStatusWaiting])
	}
	if byStatus[enums.OrderStatusInitiated] != 1 {
		t.Fatalf("expected exactly one initiated entry, got %d", byStatus[enums.OrderStatusInitiated])
	}
}

// collisionRepo fails the first creates with a captured driver error so the
// number-retry path runs against the message a real collision produces.
type collisionRepo struct {
	Repository
	dup      error
	failures *int
	numbers  *[]string
}

func (r *collisionRepo) WithTx(tx *gorm.DB) Repository {
	return &collisionRepo{Repository: r.Repository.WithTx(tx), dup: r.dup, failures: r.failures, numbers: r.numbers}
}

func (r *collisionRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	*r.numbers = append(*r.numbers, order.OrderNumber)
	if *r.failures > 0 {
		*r.failures--
		return nil, r.dup
	}
	return r.Repository.Create(ctx, order)
}

func TestCheckoutRetriesOrderNumberCollision(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 500, 200, 5)

	base := NewRepository(db)
	if _, err := base.Create(ctx, &models.Order{ID: uuid.New(), OrderNumber: "PC-TAKEN00000", Status: enums.OrderStatusInitiated}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	_, dup := base.Create(ctx, &models.Order{ID: uuid.New(), OrderNumber: "PC-TAKEN00000", Status: enums.OrderStatusInitiated})
	if dup == nil {
		t.Fatal("expected a duplicate-key error")
	}

	failures := 1
	var numbers []string
	repo := &collisionRepo{Repository: base, dup: dup, failures: &failures, numbers: &numbers}

	rates, err := pricing.NewRateTable(db)
	if err != nil {
		t.Fatalf("rate table: %v", err)
	}
	log := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(testTxRunner{db: db}, repo, inventory.NewLedger(), coupons.NewService(), rates, log, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order, err := svc.InitiateCheckout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if len(numbers) != 2 {
		t.Fatalf("expected one retry, saw attempts %v", numbers)
	}
	if numbers[0] == numbers[1] {
		t.Fatalf("expected a fresh number on retry, both were %s", numbers[0])
	}
	if order.OrderNumber != numbers[1] {
		t.Fatalf("expected the retried number %s, got %s", numbers[1], order.OrderNumber)
	}
}
