package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order from checkout to delivery.
type OrderStatus string

const (
	OrderStatusInitiated     OrderStatus = "initiated"
	OrderStatusWaiting       OrderStatus = "waiting"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusUnderDelivery OrderStatus = "under_delivery"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusRefused       OrderStatus = "refused"
	OrderStatusCanceled      OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusInitiated,
	OrderStatusWaiting,
	OrderStatusPaid,
	OrderStatusUnderDelivery,
	OrderStatusDelivered,
	OrderStatusRefused,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsPrePayment reports whether the status precedes payment confirmation.
func (o OrderStatus) IsPrePayment() bool {
	return o == OrderStatusInitiated || o == OrderStatusWaiting
}

// IsPostPayment reports whether paid==true is consistent with the status.
func (o OrderStatus) IsPostPayment() bool {
	switch o {
	case OrderStatusPaid, OrderStatusUnderDelivery, OrderStatusDelivered, OrderStatusRefused, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminalForInventory reports whether further quantity mutation is allowed.
func (o OrderStatus) IsTerminalForInventory() bool {
	switch o {
	case OrderStatusDelivered, OrderStatusRefused, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
