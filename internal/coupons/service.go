package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
)

// Rejection reasons surfaced in the error details so clients can show a
// specific message per failure.
const (
	ReasonNotFound     = "not_found"
	ReasonNotStarted   = "not_started"
	ReasonExpired      = "expired"
	ReasonExhausted    = "exhausted"
	ReasonNotOwned     = "not_owned"
	ReasonBelowMinimum = "below_minimum"

	// ReasonAlreadyApplied is raised by the order layer; an order carries at
	// most one coupon.
	ReasonAlreadyApplied = "already_applied"
)

// Invalid builds a coupon rejection error with a machine-readable reason.
func Invalid(reason, message string) error {
	return invalid(reason, message)
}

// Service validates and redeems coupon codes. Redemption decrements the
// remaining-uses counter atomically, so two concurrent redemptions of a
// single-use coupon resolve to exactly one winner.
type Service interface {
	Validate(ctx context.Context, tx *gorm.DB, code string, subtotalCents int, customerID *uuid.UUID) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

type service struct {
	now func() time.Time
}

// NewService returns the coupon service.
func NewService() Service {
	return &service{now: time.Now}
}

func (s *service) Validate(ctx context.Context, tx *gorm.DB, code string, subtotalCents int, customerID *uuid.UUID) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	var coupon models.Coupon
	err := tx.WithContext(ctx).First(&coupon, "code = ?", code).Error
	if err == gorm.ErrRecordNotFound {
		return nil, invalid(ReasonNotFound, "coupon not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	now := s.now().UTC()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, invalid(ReasonNotStarted, "coupon is not active yet")
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return nil, invalid(ReasonExpired, "coupon has expired")
	}
	if coupon.AvailableUses <= 0 {
		return nil, invalid(ReasonExhausted, "coupon has no remaining uses")
	}
	if coupon.MinOrderCents != nil && subtotalCents < *coupon.MinOrderCents {
		return nil, invalid(ReasonBelowMinimum, "order subtotal is below the coupon minimum")
	}
	if coupon.OwnerID != nil {
		// Restricted coupons fail closed when the caller is anonymous.
		if customerID == nil || *customerID != *coupon.OwnerID {
			return nil, invalid(ReasonNotOwned, "coupon is restricted to another customer")
		}
	}
	return &coupon, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	// Guarded decrement: concurrent redeemers of the last use race on this
	// UPDATE and exactly one sees RowsAffected == 1.
	res := tx.WithContext(ctx).Exec(`
		UPDATE coupons
		SET available_uses = available_uses - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_uses > 0
	`, couponID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "redeem coupon")
	}
	if res.RowsAffected == 0 {
		return invalid(ReasonExhausted, "coupon has no remaining uses")
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE coupons
		SET available_uses = available_uses + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, couponID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release coupon")
	}
	return nil
}

func invalid(reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, message).
		WithDetails(map[string]any{"reason": reason})
}
