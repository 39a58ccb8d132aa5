package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

// StatusLogEntry records when an order reached a status. One logical entry
// per distinct status; re-entering a status refreshes RecordedAt instead of
// duplicating the row.
type StatusLogEntry struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_status_log_order_status"`
	Status     enums.OrderStatus `gorm:"column:status;type:text;not null;uniqueIndex:idx_status_log_order_status"`
	RecordedAt time.Time         `gorm:"column:recorded_at;not null"`
}
