package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/internal/payments"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/metrics"
	"github.com/adhamfarouk/pillcart-backend/pkg/redis"
	"github.com/adhamfarouk/pillcart-backend/pkg/shipblu"
)

const reconciliationWindow = 20

// providerStatusMap is the fixed lookup from provider status strings to
// internal transitions. Unrecognized strings produce no transition.
var providerStatusMap = map[string]enums.OrderStatus{
	"Out for Delivery": enums.OrderStatusUnderDelivery,
	"Order Delivered":  enums.OrderStatusDelivered,
	"Delivery Failed":  enums.OrderStatusRefused,
	"Returned":         enums.OrderStatusRefused,
	"Cancelled":        enums.OrderStatusCanceled,
	"Voided":           enums.OrderStatusCanceled,
}

type shipmentClient interface {
	CreateOrder(ctx context.Context, idempotencyKey string, req shipblu.OrderRequest) (*shipblu.OrderResponse, error)
	StoreName() string
}

// orderStore is the slice of the orders repository this reconciler touches.
type orderStore interface {
	FindByShipmentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByShipmentNumber(ctx context.Context, number string) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID, providerReference, providerNumber string) (bool, error)
	AppendReconciliation(ctx context.Context, record *models.ReconciliationRecord) error
	PruneReconciliation(ctx context.Context, orderID uuid.UUID, keep int) error
}

type orderMachine interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Quote(ctx context.Context, orderID uuid.UUID) (*pricing.Breakdown, error)
	MarkUnderDelivery(ctx context.Context, orderID uuid.UUID) (*orders.TransitionResult, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*orders.TransitionResult, error)
	MarkRefused(ctx context.Context, orderID uuid.UUID) (*orders.TransitionResult, error)
	MarkCanceled(ctx context.Context, orderID uuid.UUID) (*orders.TransitionResult, error)
}

// Event is one inbound fulfillment webhook, already signature-verified.
type Event struct {
	Status            string
	OrderReference    string
	MerchantReference string
	OrderType         string
	Store             string
	Payload           json.RawMessage
}

// Outcome reports how an event resolved. Applied is false both for
// unrecognized statuses and for transitions the order already made.
type Outcome struct {
	Applied bool
	Order   *models.Order
}

// Service is the fulfillment reconciler: it creates shipments with the
// logistics provider and applies delivery-status events idempotently.
type Service interface {
	CreateShipment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyStatusEvent(ctx context.Context, event Event) (*Outcome, error)
}

// Options carries the service wiring.
type Options struct {
	Repo           orderStore
	Machine        orderMachine
	Provider       shipmentClient
	Idempotency    redis.IdempotencyStore
	Logger         *logger.Logger
	Metrics        *metrics.OrderMetrics
	IdempotencyTTL time.Duration
}

type service struct {
	repo    orderStore
	machine orderMachine
	shipblu shipmentClient
	idem    redis.IdempotencyStore
	log     *logger.Logger
	metrics *metrics.OrderMetrics
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds the fulfillment reconciler. Idempotency store and
// metrics are optional.
func NewService(opts Options) (Service, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if opts.Machine == nil {
		return nil, fmt.Errorf("order state machine required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("fulfillment provider required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{
		repo:    opts.Repo,
		machine: opts.Machine,
		shipblu: opts.Provider,
		idem:    opts.Idempotency,
		log:     opts.Logger,
		metrics: opts.Metrics,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// CreateShipment registers the order with the logistics provider. The
// shipped flag flips exactly once; re-triggering an already shipped order is
// a no-op. The provider cannot deduplicate on a natural key, so every
// attempt carries a fresh idempotency key.
func (s *service) CreateShipment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.machine.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipped {
		return order, nil
	}
	if order.ShippingAddress == nil || !order.ShippingAddress.IsComplete() {
		return nil, pkgerrors.New(pkgerrors.CodeAddressIncomplete, "order needs a complete shipping address before shipping")
	}

	breakdown, err := s.machine.Quote(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cashOnDelivery := 0
	if !order.Paid {
		cashOnDelivery = breakdown.TotalCents
	}

	attemptRef := fmt.Sprintf("%s-%d", order.OrderNumber, s.now().Unix())
	request := shipblu.OrderRequest{
		MerchantReference: attemptRef,
		CustomerName:      order.ShippingAddress.Name,
		CustomerPhone:     order.ShippingAddress.Phone,
		AddressLine:       order.ShippingAddress.Line1,
		City:              order.ShippingAddress.City,
		Region:            order.ShippingAddress.Region,
		CashOnDelivery:    cashOnDelivery,
		Store:             s.shipblu.StoreName(),
	}
	for _, item := range order.Items {
		name := "item"
		if item.Product != nil {
			name = item.Product.Name
		}
		request.Items = append(request.Items, shipblu.OrderItem{Name: name, Qty: item.Qty})
	}

	// Provider call happens before any write; a timeout leaves the shipped
	// flag untouched and the next attempt uses a new key.
	response, err := s.shipblu.CreateOrder(ctx, attemptRef, request)
	if err != nil {
		return nil, err
	}

	flipped, err := s.repo.MarkShipped(ctx, order.ID, response.ProviderOrderID, response.OrderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store shipment reference")
	}
	if !flipped {
		return s.machine.Get(ctx, orderID)
	}
	order.Shipped = true
	order.ShipmentReference = &response.ProviderOrderID
	order.ShipmentNumber = &response.OrderNumber

	s.log.Info(s.log.WithOrderNumber(ctx, order.OrderNumber), "shipment created")
	return order, nil
}

// ApplyStatusEvent applies one provider webhook. The payload is audited
// before interpretation; unrecognized statuses resolve to an ignored
// outcome, unmatched orders to a distinct not-found error.
func (s *service) ApplyStatusEvent(ctx context.Context, event Event) (*Outcome, error) {
	if strings.TrimSpace(event.Status) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}
	if strings.TrimSpace(event.OrderReference) == "" && strings.TrimSpace(event.MerchantReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event carries no usable reference")
	}

	order, err := s.findOrder(ctx, event)
	if err != nil {
		s.record(ctx, nil, event)
		s.countWebhook("unmatched")
		return nil, err
	}

	// Audit first so redeliveries land in the trail too.
	s.record(ctx, &order.ID, event)

	var guardKey string
	if s.idem != nil {
		// Keyed on the resolved order so merchant-reference-only events
		// for different orders never collide.
		guardKey = s.idem.IdempotencyKey("shipblu", order.ID.String()+":"+strings.TrimSpace(event.Status))
		fresh, err := s.idem.SetNX(ctx, guardKey, "1", s.ttl)
		if err == nil && !fresh {
			s.countWebhook("duplicate")
			return &Outcome{Applied: false, Order: order}, nil
		}
	}

	target, recognized := providerStatusMap[strings.TrimSpace(event.Status)]
	if !recognized {
		s.countWebhook("ignored")
		return &Outcome{Applied: false, Order: order}, nil
	}

	result, err := s.transition(ctx, order.ID, target)
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		return nil, err
	}
	if result.Applied {
		s.countWebhook("applied")
	} else {
		s.countWebhook("ignored")
	}
	return &Outcome{Applied: result.Applied, Order: result.Order}, nil
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*orders.TransitionResult, error) {
	switch target {
	case enums.OrderStatusUnderDelivery:
		return s.machine.MarkUnderDelivery(ctx, orderID)
	case enums.OrderStatusDelivered:
		return s.machine.MarkDelivered(ctx, orderID)
	case enums.OrderStatusRefused:
		return s.machine.MarkRefused(ctx, orderID)
	case enums.OrderStatusCanceled:
		return s.machine.MarkCanceled(ctx, orderID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unmapped target status %s", target))
	}
}

// findOrder tries the three lookup strategies in order: provider reference,
// merchant reference prefix, provider order number. First match wins.
func (s *service) findOrder(ctx context.Context, event Event) (*models.Order, error) {
	if ref := strings.TrimSpace(event.OrderReference); ref != "" {
		order, err := s.repo.FindByShipmentReference(ctx, ref)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by shipment reference")
		}
	}
	if number := payments.OrderNumberFromMerchantReference(event.MerchantReference); number != "" {
		order, err := s.repo.FindByOrderNumber(ctx, number)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by order number")
		}
	}
	if ref := strings.TrimSpace(event.OrderReference); ref != "" {
		order, err := s.repo.FindByShipmentNumber(ctx, ref)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by shipment number")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order matches the fulfillment event")
}

func (s *service) record(ctx context.Context, orderID *uuid.UUID, event Event) {
	record := &models.ReconciliationRecord{
		OrderID:           orderID,
		Provider:          enums.ProviderShipblu,
		ProviderReference: event.OrderReference,
		Payload:           event.Payload,
	}
	if err := s.repo.AppendReconciliation(ctx, record); err != nil {
		s.log.Error(ctx, "append fulfillment reconciliation record", err)
		return
	}
	if orderID != nil {
		if err := s.repo.PruneReconciliation(ctx, *orderID, reconciliationWindow); err != nil {
			s.log.Warn(ctx, "prune fulfillment reconciliation records")
		}
	}
}

func (s *service) releaseGuard(ctx context.Context, key string) {
	if s.idem == nil || key == "" {
		return
	}
	if err := s.idem.Del(ctx, key); err != nil {
		s.log.Warn(ctx, "release fulfillment idempotency guard")
	}
}

func (s *service) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(enums.ProviderShipblu.String(), outcome)
	}
}
