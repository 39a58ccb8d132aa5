package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
)

// ReconciliationRecord is the append-only audit trail of every inbound
// provider webhook, persisted before any business effect is applied. OrderID
// stays null when no order could be matched. The table is pruned to the most
// recent entries per order to cap storage.
type ReconciliationRecord struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           *uuid.UUID      `gorm:"column:order_id;type:uuid;index"`
	Provider          enums.Provider  `gorm:"column:provider;type:text;not null"`
	ProviderReference string          `gorm:"column:provider_reference;not null"`
	Payload           json.RawMessage `gorm:"column:payload;type:jsonb"`
	ReceivedAt        time.Time       `gorm:"column:received_at;autoCreateTime"`
}
