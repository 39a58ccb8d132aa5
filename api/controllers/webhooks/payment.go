package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/adhamfarouk/pillcart-backend/api/responses"
	"github.com/adhamfarouk/pillcart-backend/internal/payments"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

const paygateSignatureHeader = "X-Paygate-Signature"

type paymentService interface {
	ApplyPaymentEvent(ctx context.Context, event payments.Event) (*payments.Outcome, error)
}

type paygateClient interface {
	SigningSecret() string
}

type paymentEventRequest struct {
	Status            string `json:"status"`
	InvoiceID         string `json:"invoice_id"`
	MerchantReference string `json:"merchant_reference"`
}

// PaymentWebhook applies asynchronous payment confirmations. The provider
// retries until it sees a 2xx, so the body is flat JSON rather than the
// usual envelope.
func PaymentWebhook(svc paymentService, client paygateClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProvider(ctx, "paygate")
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paygate client unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !validSignature(body, client.SigningSecret(), r.Header.Get(paygateSignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment signature invalid"))
			return
		}

		var payload paymentEventRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event body"))
			return
		}
		if strings.TrimSpace(payload.Status) == "" ||
			(strings.TrimSpace(payload.InvoiceID) == "" && strings.TrimSpace(payload.MerchantReference) == "") {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status and a reference are required"))
			return
		}

		outcome, err := svc.ApplyPaymentEvent(ctx, payments.Event{
			ProviderReference: strings.TrimSpace(payload.InvoiceID),
			MerchantReference: strings.TrimSpace(payload.MerchantReference),
			Status:            strings.TrimSpace(payload.Status),
			Payload:           body,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderNumber := ""
		currentStatus := ""
		if outcome.Order != nil {
			orderNumber = outcome.Order.OrderNumber
			currentStatus = string(outcome.Order.Status)
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"applied":        outcome.Applied,
			"order_number":   orderNumber,
			"current_status": currentStatus,
		})
	}
}

// PaymentWebhookLiveness answers the provider's GET probe against the
// webhook URL with a static body.
func PaymentWebhookLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
