package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/api/responses"
	internalorders "github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

type invoiceService interface {
	CreateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type shipmentService interface {
	CreateShipment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// CreateInvoice asks the payment provider for an invoice and returns the
// order carrying the payment URL. Repeat calls return the existing invoice.
func CreateInvoice(svc internalorders.Service, payments invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || payments == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		order, err := resolveOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := payments.CreateInvoice(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_number":      updated.OrderNumber,
			"payment_reference": updated.PaymentReference,
			"payment_url":       updated.PaymentURL,
		})
	}
}

// Ship hands the order to the logistics provider. The shipped flag only
// flips forward, so repeat calls are no-ops.
func Ship(svc internalorders.Service, fulfillment shipmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || fulfillment == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		order, err := resolveOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := fulfillment.CreateShipment(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_number":       updated.OrderNumber,
			"shipped":            updated.Shipped,
			"shipment_reference": updated.ShipmentReference,
			"shipment_number":    updated.ShipmentNumber,
		})
	}
}
