package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/pedalhub/rental-service/internal/events"
)

// NotificationService turns domain events into customer and operator notifications.
// Delivery is log-only for now.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n == nil || n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRentalCreated, n.notifyRenter)
	n.dispatcher.Subscribe(events.EventRentalReturned, n.notifyRenter)
	n.dispatcher.Subscribe(events.EventRentalCancelled, n.notifyRenter)
	n.dispatcher.Subscribe(events.EventBikeStatusSet, n.notifyFleet)
}

func (n *NotificationService) notifyRenter(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.RentalPayload)
	n.logger.Info("rental notification",
		zap.String("event_type", string(event.Type)),
		zap.String("rental_id", event.Subject),
		zap.String("user_id", payload.UserID),
		zap.String("bike_id", payload.BikeID),
		zap.Float64("total_cost", payload.TotalCost))
	return nil
}

func (n *NotificationService) notifyFleet(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.BikeStatusPayload)
	n.logger.Info("fleet notification",
		zap.String("bike_id", event.Subject),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)),
		zap.String("changed_by", event.Actor.UserID))
	return nil
}
