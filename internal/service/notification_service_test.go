package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
)

func TestNotificationServiceLogsRentalAndFleetEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher(logger)
	NewNotificationService(dispatcher, logger).RegisterHandlers()

	ctx := context.Background()
	dispatcher.Publish(ctx, events.Event{
		Type:    events.EventRentalReturned,
		Subject: "r1",
		Payload: events.RentalPayload{UserID: "u1", BikeID: "b1", Status: domain.RentalStatusCompleted, TotalCost: 9},
	})
	dispatcher.Publish(ctx, events.Event{
		Type:    events.EventBikeStatusSet,
		Subject: "b1",
		Actor:   events.Actor{UserID: "staff-1", Role: domain.UserRoleStaff},
		Payload: events.BikeStatusPayload{OldStatus: domain.BikeStatusAvailable, NewStatus: domain.BikeStatusMaintenance},
	})

	rental := logs.FilterMessage("rental notification").All()
	require.Len(t, rental, 1)
	assert.Equal(t, "u1", rental[0].ContextMap()["user_id"])
	assert.Equal(t, 9.0, rental[0].ContextMap()["total_cost"])

	fleet := logs.FilterMessage("fleet notification").All()
	require.Len(t, fleet, 1)
	assert.Equal(t, "maintenance", fleet[0].ContextMap()["new_status"])
	assert.Equal(t, "staff-1", fleet[0].ContextMap()["changed_by"])
}
