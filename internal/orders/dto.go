package orders

import (
	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

// CheckoutItem is one (product, variant, quantity) entry from the cart.
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
}

// CheckoutInput is the cart snapshot a checkout starts from.
type CheckoutInput struct {
	Items         []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	CustomerEmail *string        `json:"customer_email,omitempty" validate:"omitempty,email"`
}

// TransitionResult reports the outcome of a status transition. Applied is
// false when the transition was an idempotent no-op.
type TransitionResult struct {
	Order   *models.Order
	Applied bool
}

// Status returns the order's status after the transition.
func (r TransitionResult) Status() enums.OrderStatus {
	if r.Order == nil {
		return ""
	}
	return r.Order.Status
}
