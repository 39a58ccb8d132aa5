package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/metrics"
	"github.com/adhamfarouk/pillcart-backend/pkg/paygate"
	"github.com/adhamfarouk/pillcart-backend/pkg/redis"
)

// reconciliationWindow bounds the audit trail per order.
const reconciliationWindow = 20

type invoiceClient interface {
	CreateInvoice(ctx context.Context, req paygate.InvoiceRequest) (*paygate.Invoice, error)
	Currency() string
}

// orderStore is the slice of the orders repository this reconciler touches.
type orderStore interface {
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference, paymentURL string) (bool, error)
	AppendReconciliation(ctx context.Context, record *models.ReconciliationRecord) error
	PruneReconciliation(ctx context.Context, orderID uuid.UUID, keep int) error
}

type orderMachine interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Quote(ctx context.Context, orderID uuid.UUID) (*pricing.Breakdown, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*orders.TransitionResult, error)
}

// Event is one inbound payment webhook, already signature-verified.
type Event struct {
	ProviderReference string
	MerchantReference string
	Status            string
	Payload           json.RawMessage
}

// Outcome reports how an event or invoice call resolved. Applied is false
// for idempotent no-ops (duplicate events, already-paid orders).
type Outcome struct {
	Applied bool
	Order   *models.Order
}

// Service is the payment reconciler: it creates provider invoices for
// orders and applies asynchronous payment confirmations exactly once.
type Service interface {
	CreateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyPaymentEvent(ctx context.Context, event Event) (*Outcome, error)
}

// Options carries the service wiring.
type Options struct {
	Repo           orderStore
	Machine        orderMachine
	Provider       invoiceClient
	Idempotency    redis.IdempotencyStore
	Logger         *logger.Logger
	Metrics        *metrics.OrderMetrics
	BaseURL        string
	IdempotencyTTL time.Duration
}

type service struct {
	repo    orderStore
	machine orderMachine
	paygate invoiceClient
	idem    redis.IdempotencyStore
	log     *logger.Logger
	metrics *metrics.OrderMetrics
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds the payment reconciler. Idempotency store and metrics
// are optional.
func NewService(opts Options) (Service, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if opts.Machine == nil {
		return nil, fmt.Errorf("order state machine required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
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
		paygate: opts.Provider,
		idem:    opts.Idempotency,
		log:     opts.Logger,
		metrics: opts.Metrics,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// CreateInvoice asks the provider for a hosted payment page. A second call
// for the same order returns the stored reference instead of creating a
// duplicate invoice, which would double-bill the customer.
func (s *service) CreateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.machine.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentReference != nil {
		return order, nil
	}
	if order.ShippingAddress == nil || !order.ShippingAddress.IsComplete() {
		return nil, pkgerrors.New(pkgerrors.CodeAddressIncomplete, "order needs a complete shipping address before invoicing")
	}

	breakdown, err := s.machine.Quote(ctx, orderID)
	if err != nil {
		return nil, err
	}

	request := paygate.InvoiceRequest{
		AmountCents:       breakdown.TotalCents,
		Currency:          s.paygate.Currency(),
		MerchantReference: fmt.Sprintf("%s-%d", order.OrderNumber, s.now().Unix()),
		Customer: paygate.Customer{
			Name:  order.ShippingAddress.Name,
			Phone: order.ShippingAddress.Phone,
		},
		SuccessURL: s.baseURL + "/payments/success",
		FailURL:    s.baseURL + "/payments/fail",
		PendingURL: s.baseURL + "/payments/pending",
	}
	if order.CustomerEmail != nil {
		request.Customer.Email = *order.CustomerEmail
	}
	for _, item := range order.Items {
		quoteItem, qerr := pricing.ItemFromLine(item)
		if qerr != nil {
			return nil, qerr
		}
		name := "item"
		if item.Product != nil {
			name = item.Product.Name
		}
		request.Items = append(request.Items, paygate.InvoiceItem{
			Name:       name,
			Qty:        item.Qty,
			PriceCents: quoteItem.UnitPriceCents,
		})
	}

	// Provider call happens before any write: a timeout leaves the order
	// without a reference, safe to retry.
	invoice, err := s.paygate.CreateInvoice(ctx, request)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.SetPaymentReference(ctx, order.ID, invoice.InvoiceID, invoice.PaymentURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	if !stored {
		// Lost a race with a concurrent invoice call; the first reference
		// wins and ours is abandoned.
		return s.machine.Get(ctx, orderID)
	}
	order.PaymentReference = &invoice.InvoiceID
	order.PaymentURL = &invoice.PaymentURL

	s.log.Info(s.log.WithOrderNumber(ctx, order.OrderNumber), "payment invoice created")
	return order, nil
}

// ApplyPaymentEvent applies one provider webhook. The raw payload is
// persisted before any business effect so misclassified events stay
// inspectable, and the paid flag flips at most once no matter how many
// times the provider redelivers.
func (s *service) ApplyPaymentEvent(ctx context.Context, event Event) (*Outcome, error) {
	if strings.TrimSpace(event.ProviderReference) == "" && strings.TrimSpace(event.MerchantReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event carries no usable reference")
	}

	order, err := s.findOrder(ctx, event)
	if err != nil {
		s.record(ctx, nil, event)
		s.countWebhook("unmatched")
		return nil, err
	}

	// Every delivery is audited before the duplicate check; redeliveries
	// stay inspectable too.
	s.record(ctx, &order.ID, event)

	var guardKey string
	if s.idem != nil {
		// Keyed on the resolved order, not the event references: an event
		// carrying only a merchant reference must not share a key with
		// every other merchant-only event of the same status.
		guardKey = s.idem.IdempotencyKey("paygate", order.ID.String()+":"+strings.ToLower(strings.TrimSpace(event.Status)))
		fresh, err := s.idem.SetNX(ctx, guardKey, "1", s.ttl)
		if err == nil && !fresh {
			s.countWebhook("duplicate")
			return &Outcome{Applied: false, Order: order}, nil
		}
		// A redis failure falls through; the already-paid check still
		// guarantees at-most-once effect.
	}

	if !isPaidStatus(event.Status) {
		s.countWebhook("ignored")
		return &Outcome{Applied: false, Order: order}, nil
	}

	result, err := s.machine.MarkPaid(ctx, order.ID)
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

// findOrder resolves an event to an order: by provider reference first, then
// by the order-number prefix of the merchant reference.
func (s *service) findOrder(ctx context.Context, event Event) (*models.Order, error) {
	if ref := strings.TrimSpace(event.ProviderReference); ref != "" {
		order, err := s.repo.FindByPaymentReference(ctx, ref)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by payment reference")
		}
	}
	if number := OrderNumberFromMerchantReference(event.MerchantReference); number != "" {
		order, err := s.repo.FindByOrderNumber(ctx, number)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by order number")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order matches the payment event")
}

func (s *service) record(ctx context.Context, orderID *uuid.UUID, event Event) {
	record := &models.ReconciliationRecord{
		OrderID:           orderID,
		Provider:          enums.ProviderPaygate,
		ProviderReference: event.ProviderReference,
		Payload:           event.Payload,
	}
	if err := s.repo.AppendReconciliation(ctx, record); err != nil {
		s.log.Error(ctx, "append payment reconciliation record", err)
		return
	}
	if orderID != nil {
		if err := s.repo.PruneReconciliation(ctx, *orderID, reconciliationWindow); err != nil {
			s.log.Warn(ctx, "prune payment reconciliation records")
		}
	}
}

func (s *service) releaseGuard(ctx context.Context, key string) {
	if s.idem == nil || key == "" {
		return
	}
	if err := s.idem.Del(ctx, key); err != nil {
		s.log.Warn(ctx, "release payment idempotency guard")
	}
}

func (s *service) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(enums.ProviderPaygate.String(), outcome)
	}
}

// OrderNumberFromMerchantReference strips the timestamp suffix from a
// merchant reference of the form {order_number}-{timestamp}.
func OrderNumberFromMerchantReference(reference string) string {
	reference = strings.TrimSpace(reference)
	idx := strings.LastIndex(reference, "-")
	if idx <= 0 {
		return ""
	}
	return reference[:idx]
}

func isPaidStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "success", "successful", "completed":
		return true
	default:
		return false
	}
}
