package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

// Repository defines persistence operations for order tables. Lookups that
// find nothing return gorm.ErrRecordNotFound; the service layer maps it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.LineItem) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByShipmentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByShipmentNumber(ctx context.Context, number string) (*models.Order, error)

	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference, paymentURL string) (bool, error)
	UpdateLineItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	StampLineItemSale(ctx context.Context, itemID uuid.UUID, priceCents, costCents int) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, providerReference, providerNumber string) (bool, error)
	UpsertStatusLog(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, at time.Time) error

	ListActiveGiftRules(ctx context.Context) ([]models.GiftRule, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)

	AppendReconciliation(ctx context.Context, record *models.ReconciliationRecord) error
	PruneReconciliation(ctx context.Context, orderID uuid.UUID, keep int) error
}
