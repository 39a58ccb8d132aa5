package enums

import "testing"

func TestOrderStatusParseRoundTrip(t *testing.T) {
	t.Parallel()

	for _, status := range validOrderStatuses {
		parsed, err := ParseOrderStatus(status.String())
		if err != nil {
			t.Fatalf("parse %q: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("round trip mismatch: %q != %q", parsed, status)
		}
	}

	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestOrderStatusPredicates(t *testing.T) {
	t.Parallel()

	if !OrderStatusInitiated.IsPrePayment() || !OrderStatusWaiting.IsPrePayment() {
		t.Fatal("initiated/waiting must be pre-payment")
	}
	if OrderStatusPaid.IsPrePayment() {
		t.Fatal("paid is not pre-payment")
	}
	if !OrderStatusPaid.IsPostPayment() || !OrderStatusDelivered.IsPostPayment() {
		t.Fatal("paid/delivered must be post-payment")
	}
	if OrderStatusWaiting.IsTerminalForInventory() {
		t.Fatal("waiting must allow inventory mutation")
	}
	for _, status := range []OrderStatus{OrderStatusDelivered, OrderStatusRefused, OrderStatusCanceled} {
		if !status.IsTerminalForInventory() {
			t.Fatalf("%q must be terminal for inventory", status)
		}
	}
}
