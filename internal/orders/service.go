package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/internal/coupons"
	"github.com/adhamfarouk/pillcart-backend/internal/inventory"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/db"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/metrics"
	"github.com/adhamfarouk/pillcart-backend/pkg/types"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives status-change hooks. Delivery is fire-and-forget; a
// failing notifier must not fail the transition.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus)
}

// Service owns the order lifecycle. Every mutation runs inside a single
// transaction so a failed side effect leaves the order exactly as it was.
type Service interface {
	InitiateCheckout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	SetAddress(ctx context.Context, orderID uuid.UUID, address types.Address) (*models.Order, error)
	ApplyCoupon(ctx context.Context, orderID uuid.UUID, code string, customerID *uuid.UUID) (*models.Order, error)
	RemoveCoupon(ctx context.Context, orderID uuid.UUID) (*models.Order, error)

	MarkPaid(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	MarkUnderDelivery(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	MarkRefused(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	MarkCanceled(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)

	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	Quote(ctx context.Context, orderID uuid.UUID) (*pricing.Breakdown, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	ledger   inventory.Ledger
	coupons  coupons.Service
	rates    pricing.RateTable
	log      *logger.Logger
	metrics  *metrics.OrderMetrics
	notifier Notifier
	now      func() time.Time
}

// NewService builds the order state machine service. Metrics and notifier
// are optional.
func NewService(
	tx txRunner,
	repo Repository,
	ledger inventory.Ledger,
	couponSvc coupons.Service,
	rates pricing.RateTable,
	log *logger.Logger,
	orderMetrics *metrics.OrderMetrics,
	notifier Notifier,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if rates == nil {
		return nil, fmt.Errorf("shipping rate table required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		ledger:   ledger,
		coupons:  couponSvc,
		rates:    rates,
		log:      log,
		metrics:  orderMetrics,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

func (s *service) InitiateCheckout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required on every item")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := repo.FindProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		for _, item := range input.Items {
			if _, ok := products[item.ProductID]; !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown product %s", item.ProductID))
			}
		}

		// Validate every line and report all violations, not just the first.
		var stockErr error
		for variant, qty := range requestedQuantities(input.Items) {
			if cerr := s.ledger.ReserveCheck(ctx, tx, variant, qty); cerr != nil {
				stockErr = multierr.Append(stockErr, cerr)
			}
		}
		if stockErr != nil {
			return stockErr
		}

		order, err = s.createWithFreshNumber(ctx, repo, input)
		if err != nil {
			return err
		}

		items := make([]models.LineItem, len(input.Items))
		for i, item := range input.Items {
			product := products[item.ProductID]
			items[i] = models.LineItem{
				OrderID:   &order.ID,
				ProductID: item.ProductID,
				Size:      item.Size,
				Color:     item.Color,
				Qty:       item.Qty,
				Status:    enums.OrderStatusInitiated,
				Product:   &product,
			}
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		order.Items = items

		if err := repo.UpsertStatusLog(ctx, order.ID, enums.OrderStatusInitiated, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "log initiated")
		}
		return s.refreshGiftRule(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithOrderNumber(ctx, order.OrderNumber), "checkout initiated")
	if s.metrics != nil {
		s.metrics.IncTransition(enums.OrderStatusInitiated.String())
	}
	return order, nil
}

func (s *service) SetAddress(ctx context.Context, orderID uuid.UUID, address types.Address) (*models.Order, error) {
	var order *models.Order
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsPrePayment() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "address can only change before payment")
		}
		previous = order.Status

		// Writing an address always lands the order in waiting, even when it
		// was already there.
		if err := repo.Update(ctx, order.ID, map[string]any{
			"shipping_address": &address,
			"status":           enums.OrderStatusWaiting,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store address")
		}
		if err := repo.UpdateLineItemStatuses(ctx, order.ID, enums.OrderStatusWaiting); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror line item status")
		}
		order.ShippingAddress = &address
		order.Status = enums.OrderStatusWaiting

		if err := repo.UpsertStatusLog(ctx, order.ID, enums.OrderStatusWaiting, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "log waiting")
		}
		return s.refreshGiftRule(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}

	s.finishTransition(ctx, order, previous)
	return order, nil
}

func (s *service) ApplyCoupon(ctx context.Context, orderID uuid.UUID, code string, customerID *uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsPrePayment() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "coupons can only apply before payment")
		}
		if order.CouponID != nil {
			return coupons.Invalid(coupons.ReasonAlreadyApplied, "order already carries a coupon")
		}

		subtotal, err := s.subtotal(order)
		if err != nil {
			return err
		}
		coupon, err := s.coupons.Validate(ctx, tx, code, subtotal, customerID)
		if err != nil {
			return err
		}
		if err := s.coupons.Redeem(ctx, tx, coupon.ID); err != nil {
			return err
		}

		// The discount is derived once here and frozen; later subtotal
		// changes do not recompute it.
		discount := pricing.PercentOf(subtotal, coupon.PercentOff)
		if err := repo.Update(ctx, order.ID, map[string]any{
			"coupon_id":             coupon.ID,
			"coupon_discount_cents": discount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store coupon")
		}
		order.CouponID = &coupon.ID
		order.CouponDiscountCents = discount

		return s.refreshGiftRule(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithOrderNumber(ctx, order.OrderNumber), "coupon applied")
	return order, nil
}

func (s *service) RemoveCoupon(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsPrePayment() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "coupons can only change before payment")
		}
		if order.CouponID == nil {
			return nil
		}

		if err := s.coupons.Release(ctx, tx, *order.CouponID); err != nil {
			return err
		}
		if err := repo.Update(ctx, order.ID, map[string]any{
			"coupon_id":             nil,
			"coupon_discount_cents": 0,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear coupon")
		}
		order.CouponID = nil
		order.CouponDiscountCents = 0

		return s.refreshGiftRule(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	result := &TransitionResult{}
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		result.Order = order
		if order.Paid {
			return nil
		}
		previous = order.Status

		// Freeze price and cost per line, first write wins.
		for i := range order.Items {
			item := &order.Items[i]
			if item.PriceAtSaleCents != nil {
				continue
			}
			if item.Product == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "line item missing product at payment")
			}
			price := item.Product.EffectivePriceCents()
			cost := item.Product.CostCents
			if err := repo.StampLineItemSale(ctx, item.ID, price, cost); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp sale price")
			}
			item.PriceAtSaleCents = &price
			item.CostAtSaleCents = &cost
		}

		// A paid order stops re-evaluating promotional gifts.
		if err := repo.Update(ctx, order.ID, map[string]any{
			"paid":         true,
			"status":       enums.OrderStatusPaid,
			"gift_rule_id": nil,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark paid")
		}
		if err := repo.UpdateLineItemStatuses(ctx, order.ID, enums.OrderStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror line item status")
		}
		order.Paid = true
		order.Status = enums.OrderStatusPaid
		order.GiftRuleID = nil

		if err := repo.UpsertStatusLog(ctx, order.ID, enums.OrderStatusPaid, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "log paid")
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.log.Info(s.log.WithOrderNumber(ctx, result.Order.OrderNumber), "order paid")
		s.finishTransition(ctx, result.Order, previous)
	}
	return result, nil
}

func (s *service) MarkUnderDelivery(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	result := &TransitionResult{}
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		result.Order = order
		if order.Status == enums.OrderStatusUnderDelivery || order.Status.IsTerminalForInventory() {
			return nil
		}
		previous = order.Status

		if err := s.applyStatus(ctx, repo, order, enums.OrderStatusUnderDelivery); err != nil {
			return err
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.finishTransition(ctx, result.Order, previous)
	}
	return result, nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	result := &TransitionResult{}
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		result.Order = order
		if order.Status == enums.OrderStatusDelivered {
			return nil
		}
		if order.Status.IsTerminalForInventory() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot deliver an order in status %s", order.Status))
		}
		previous = order.Status

		// The only transition that physically consumes stock. Any shortfall
		// aborts the whole transaction and the order keeps its prior status.
		for variant, qty := range lineQuantities(order.Items) {
			if err := s.ledger.Decrement(ctx, tx, variant, qty); err != nil {
				return err
			}
		}

		if err := s.applyStatus(ctx, repo, order, enums.OrderStatusDelivered); err != nil {
			return err
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.log.Info(s.log.WithOrderNumber(ctx, result.Order.OrderNumber), "order delivered")
		s.finishTransition(ctx, result.Order, previous)
	}
	return result, nil
}

func (s *service) MarkRefused(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	return s.abandonOrReturn(ctx, orderID, enums.OrderStatusRefused)
}

func (s *service) MarkCanceled(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	return s.abandonOrReturn(ctx, orderID, enums.OrderStatusCanceled)
}

// abandonOrReturn handles the two absorbing states. Leaving delivered
// restores the delivery-time decrement; leaving any earlier status touches
// no inventory because nothing was consumed yet.
func (s *service) abandonOrReturn(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*TransitionResult, error) {
	result := &TransitionResult{}
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		result.Order = order
		if order.Status == target {
			return nil
		}
		if order.Status.IsTerminalForInventory() && order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move an order from %s to %s", order.Status, target))
		}
		previous = order.Status

		if order.Status == enums.OrderStatusDelivered {
			for variant, qty := range lineQuantities(order.Items) {
				if err := s.ledger.Increment(ctx, tx, variant, qty); err != nil {
					return err
				}
			}
		}

		if err := s.applyStatus(ctx, repo, order, target); err != nil {
			return err
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.finishTransition(ctx, result.Order, previous)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Quote derives the current price breakdown. It never writes; the breakdown
// is a display value, not stored state.
func (s *service) Quote(ctx context.Context, orderID uuid.UUID) (*pricing.Breakdown, error) {
	var breakdown pricing.Breakdown
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}

		items, err := s.quoteItems(order)
		if err != nil {
			return err
		}

		var rules []models.GiftRule
		if !order.Paid {
			rules, err = repo.ListActiveGiftRules(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift rules")
			}
		}

		var region string
		if order.ShippingAddress != nil {
			region = order.ShippingAddress.Region
		}
		fee, err := s.rates.FeeForRegion(ctx, region)
		if err != nil {
			return err
		}

		breakdown = pricing.Quote(items, order.CouponDiscountCents, rules, fee, s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &breakdown, nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// applyStatus writes the status, mirrors it onto the line items, and upserts
// the status log entry.
func (s *service) applyStatus(ctx context.Context, repo Repository, order *models.Order, status enums.OrderStatus) error {
	if err := repo.Update(ctx, order.ID, map[string]any{"status": status}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
	}
	if err := repo.UpdateLineItemStatuses(ctx, order.ID, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror line item status")
	}
	order.Status = status
	return repo.UpsertStatusLog(ctx, order.ID, status, s.now().UTC())
}

// refreshGiftRule reselects the best matching gift rule from the live
// subtotal. Paid orders keep their rule cleared.
func (s *service) refreshGiftRule(ctx context.Context, repo Repository, order *models.Order) error {
	if order.Paid {
		return nil
	}
	subtotal, err := s.subtotal(order)
	if err != nil {
		return err
	}
	rules, err := repo.ListActiveGiftRules(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift rules")
	}

	var ruleID *uuid.UUID
	if rule := pricing.BestGiftRule(rules, subtotal, s.now().UTC()); rule != nil {
		id := rule.ID
		ruleID = &id
	}
	if equalRuleID(order.GiftRuleID, ruleID) {
		return nil
	}
	update := map[string]any{"gift_rule_id": nil}
	if ruleID != nil {
		update["gift_rule_id"] = *ruleID
	}
	if err := repo.Update(ctx, order.ID, update); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gift rule")
	}
	order.GiftRuleID = ruleID
	return nil
}

func (s *service) subtotal(order *models.Order) (int, error) {
	items, err := s.quoteItems(order)
	if err != nil {
		return 0, err
	}
	var subtotal int
	for _, item := range items {
		subtotal += item.UnitPriceCents * item.Qty
	}
	return subtotal, nil
}

func (s *service) quoteItems(order *models.Order) ([]pricing.QuoteItem, error) {
	items := make([]pricing.QuoteItem, 0, len(order.Items))
	for _, line := range order.Items {
		item, err := pricing.ItemFromLine(line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *service) createWithFreshNumber(ctx context.Context, repo Repository, input CheckoutInput) (*models.Order, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order := &models.Order{
			OrderNumber:   generateOrderNumber(),
			Status:        enums.OrderStatusInitiated,
			CustomerEmail: input.CustomerEmail,
		}
		created, err := repo.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		// Postgres reports orders_order_number_key, sqlite the qualified
		// column; the column name appears in both.
		if !db.IsUniqueViolation(err, "order_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func generateOrderNumber() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; uuid keeps the
		// number unique if it somehow does.
		return "PC-" + strings.ToUpper(uuid.NewString()[:10])
	}
	return "PC-" + strings.ToUpper(hex.EncodeToString(buf))
}

func (s *service) finishTransition(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	if s.metrics != nil {
		s.metrics.IncTransition(order.Status.String())
	}
	if s.notifier != nil && order.Status != previous {
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
}

// requestedQuantities aggregates checkout items by variant so a cart with
// the same variant on two lines validates against the combined quantity.
func requestedQuantities(items []CheckoutItem) map[inventory.Variant]int {
	quantities := make(map[inventory.Variant]int, len(items))
	for _, item := range items {
		variant := inventory.NewVariant(item.ProductID, item.Size, item.Color)
		quantities[variant] += item.Qty
	}
	return quantities
}

func lineQuantities(items []models.LineItem) map[inventory.Variant]int {
	quantities := make(map[inventory.Variant]int, len(items))
	for _, item := range items {
		variant := inventory.NewVariant(item.ProductID, item.Size, item.Color)
		quantities[variant] += item.Qty
	}
	return quantities
}

func equalRuleID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
