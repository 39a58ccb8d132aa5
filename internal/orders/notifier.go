package orders

import (
	"context"
	"fmt"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

type logNotifier struct {
	log *logger.Logger
}

// NewLogNotifier returns a Notifier that records status changes in the
// structured log. It stands in until a real notification channel exists.
func NewLogNotifier(log *logger.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	if n.log == nil || order == nil {
		return
	}
	ctx = n.log.WithOrderNumber(ctx, order.OrderNumber)
	ctx = n.log.WithFields(ctx, map[string]any{
		"previous_status": string(previous),
		"current_status":  string(order.Status),
	})
	n.log.Info(ctx, fmt.Sprintf("order moved to %s", order.Status))
}
