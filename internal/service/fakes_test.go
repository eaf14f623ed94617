package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/repository"
)

// countingRentals records repository reads so cache hits can be asserted.
type countingRentals struct {
	repository.RentalRepository
	gets atomic.Int32
}

func (c *countingRentals) GetByID(ctx context.Context, id string) (*domain.Rental, error) {
	c.gets.Add(1)
	return c.RentalRepository.GetByID(ctx, id)
}

func setBikeStatus(t *testing.T, bikes repository.BikeRepository, id string, status domain.BikeStatus) {
	t.Helper()
	ctx := context.Background()
	bike, err := bikes.GetByID(ctx, id)
	require.NoError(t, err)
	expected := bike.Status
	bike.Status = status
	require.NoError(t, bikes.Update(ctx, bike, expected))
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) Publish(_ context.Context, event events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturedEvents) Subscribe(events.EventType, events.EventHandler) {}

func (c *capturedEvents) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]events.EventType, 0, len(c.events))
	for _, e := range c.events {
		types = append(types, e.Type)
	}
	return types
}
