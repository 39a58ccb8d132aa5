package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/adhamfarouk/pillcart-backend/api/responses"
	"github.com/adhamfarouk/pillcart-backend/internal/fulfillment"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

const shipbluSignatureHeader = "X-Shipblu-Signature"

type fulfillmentService interface {
	ApplyStatusEvent(ctx context.Context, event fulfillment.Event) (*fulfillment.Outcome, error)
}

type shipbluClient interface {
	SigningSecret() string
}

type fulfillmentEventRequest struct {
	Status            string `json:"status"`
	OrderReference    string `json:"orderReference"`
	MerchantReference string `json:"merchantReference"`
	OrderType         string `json:"orderType"`
	Store             string `json:"store"`
}

// FulfillmentWebhook applies delivery-status updates from the logistics
// provider.
func FulfillmentWebhook(svc fulfillmentService, client shipbluClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProvider(ctx, "shipblu")
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipblu client unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !validSignature(body, client.SigningSecret(), r.Header.Get(shipbluSignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "fulfillment signature invalid"))
			return
		}

		var payload fulfillmentEventRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event body"))
			return
		}
		if strings.TrimSpace(payload.Status) == "" ||
			(strings.TrimSpace(payload.OrderReference) == "" && strings.TrimSpace(payload.MerchantReference) == "") {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status and a reference are required"))
			return
		}

		outcome, err := svc.ApplyStatusEvent(ctx, fulfillment.Event{
			Status:            strings.TrimSpace(payload.Status),
			OrderReference:    strings.TrimSpace(payload.OrderReference),
			MerchantReference: strings.TrimSpace(payload.MerchantReference),
			OrderType:         strings.TrimSpace(payload.OrderType),
			Store:             strings.TrimSpace(payload.Store),
			Payload:           body,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pillID := ""
		currentStatus := ""
		if outcome.Order != nil {
			pillID = outcome.Order.OrderNumber
			currentStatus = string(outcome.Order.Status)
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"pill_id":        pillID,
			"status_updated": outcome.Applied,
			"current_status": currentStatus,
		})
	}
}
