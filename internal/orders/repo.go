package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit("Items", "StatusLog").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id.String())
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.findOne(ctx, "payment_reference = ?", reference)
}

func (r *repository) FindByShipmentReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.findOne(ctx, "shipment_reference = ?", reference)
}

func (r *repository) FindByShipmentNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.findOne(ctx, "shipment_number = ?", number)
}

func (r *repository) findOne(ctx context.Context, query string, arg string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("StatusLog").
		Where(query, arg).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// SetPaymentReference stores the provider invoice handle exactly once.
// Returns false when a reference was already present.
func (r *repository) SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference, paymentURL string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET payment_reference = ?,
			payment_url = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND payment_reference IS NULL
	`, reference, paymentURL, orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateLineItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

// StampLineItemSale freezes price/cost at sale: first write wins, later
// writes hit zero rows and change nothing.
func (r *repository) StampLineItemSale(ctx context.Context, itemID uuid.UUID, priceCents, costCents int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE line_items
		SET price_at_sale_cents = ?,
			cost_at_sale_cents = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND price_at_sale_cents IS NULL
	`, priceCents, costCents, itemID).Error
}

// MarkShipped flips the one-way shipped flag. Returns false when the order
// was already shipped, so the caller can treat re-triggering as a no-op.
func (r *repository) MarkShipped(ctx context.Context, orderID uuid.UUID, providerReference, providerNumber string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET shipped = ?,
			shipment_reference = ?,
			shipment_number = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND shipped = ?
	`, true, providerReference, providerNumber, orderID, false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpsertStatusLog(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, at time.Time) error {
	entry := models.StatusLogEntry{
		ID:         uuid.New(),
		OrderID:    orderID,
		Status:     status,
		RecordedAt: at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "status"}},
			DoUpdates: clause.Assignments(map[string]any{"recorded_at": at}),
		}).
		Create(&entry).Error
}

func (r *repository) ListActiveGiftRules(ctx context.Context) ([]models.GiftRule, error) {
	var rules []models.GiftRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	result := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r *repository) AppendReconciliation(ctx context.Context, record *models.ReconciliationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// PruneReconciliation keeps the most recent entries per order so the audit
// trail stays bounded.
func (r *repository) PruneReconciliation(ctx context.Context, orderID uuid.UUID, keep int) error {
	if keep <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		DELETE FROM reconciliation_records
		WHERE order_id = ?
		  AND id NOT IN (
			SELECT id FROM reconciliation_records
			WHERE order_id = ?
			ORDER BY received_at DESC
			LIMIT ?
		  )
	`, orderID, orderID, keep).Error
}
