package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
)

// QuoteItem is a line item resolved to the unit price the quote should use:
// the frozen price-at-sale for stamped items, the current effective catalog
// price otherwise.
type QuoteItem struct {
	UnitPriceCents int
	Qty            int
}

// Breakdown is the full price decomposition of an order. Total is always
// derived: max(0, subtotal - gift - coupon) + shipping.
type Breakdown struct {
	SubtotalCents       int        `json:"subtotal_cents"`
	GiftDiscountCents   int        `json:"gift_discount_cents"`
	CouponDiscountCents int        `json:"coupon_discount_cents"`
	ShippingFeeCents    int        `json:"shipping_fee_cents"`
	TotalCents          int        `json:"total_cents"`
	GiftRuleID          *uuid.UUID `json:"gift_rule_id,omitempty"`
}

// ItemFromLine resolves a line item to its quotable unit price. Unstamped
// items need their product loaded so the current discount can apply.
func ItemFromLine(item models.LineItem) (QuoteItem, error) {
	if item.PriceAtSaleCents != nil {
		return QuoteItem{UnitPriceCents: *item.PriceAtSaleCents, Qty: item.Qty}, nil
	}
	if item.Product == nil {
		return QuoteItem{}, pkgerrors.New(pkgerrors.CodeInternal, "line item missing product for price resolution")
	}
	return QuoteItem{UnitPriceCents: item.Product.EffectivePriceCents(), Qty: item.Qty}, nil
}

// PercentOf returns percent% of amount in cents, truncated.
func PercentOf(amountCents, percent int) int {
	if amountCents <= 0 || percent <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(amountCents)).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		IntPart())
}

// BestGiftRule picks the applicable gift rule for a subtotal: active, band
// contains the subtotal, time window (if any) contains now. Among candidates
// the largest discount wins, tie-broken by most recent creation.
func BestGiftRule(rules []models.GiftRule, subtotalCents int, now time.Time) *models.GiftRule {
	var best *models.GiftRule
	var bestDiscount int
	for i := range rules {
		rule := &rules[i]
		if !rule.Active {
			continue
		}
		if subtotalCents < rule.MinOrderCents || subtotalCents > rule.MaxOrderCents {
			continue
		}
		if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
			continue
		}
		if rule.EndsAt != nil && now.After(*rule.EndsAt) {
			continue
		}
		discount := PercentOf(subtotalCents, rule.PercentOff)
		if best == nil ||
			discount > bestDiscount ||
			(discount == bestDiscount && rule.CreatedAt.After(best.CreatedAt)) {
			best = rule
			bestDiscount = discount
		}
	}
	return best
}

// Quote computes the price breakdown. The coupon discount arrives frozen in
// cents (computed once at apply time); the gift rule is reselected here from
// the live subtotal.
func Quote(items []QuoteItem, couponDiscountCents int, giftRules []models.GiftRule, shippingFeeCents int, now time.Time) Breakdown {
	var subtotal int
	for _, item := range items {
		subtotal += item.UnitPriceCents * item.Qty
	}

	var giftDiscount int
	var giftRuleID *uuid.UUID
	if rule := BestGiftRule(giftRules, subtotal, now); rule != nil {
		giftDiscount = PercentOf(subtotal, rule.PercentOff)
		id := rule.ID
		giftRuleID = &id
	}

	discounted := subtotal - giftDiscount - couponDiscountCents
	if discounted < 0 {
		discounted = 0
	}

	return Breakdown{
		SubtotalCents:       subtotal,
		GiftDiscountCents:   giftDiscount,
		CouponDiscountCents: couponDiscountCents,
		ShippingFeeCents:    shippingFeeCents,
		TotalCents:          discounted + shippingFeeCents,
		GiftRuleID:          giftRuleID,
	}
}
