package events

import (
	"time"

	"github.com/pedalhub/rental-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRentalCreated   EventType = "rental_created"
	EventRentalReturned  EventType = "rental_returned"
	EventRentalCancelled EventType = "rental_cancelled"
	EventBikeStatusSet   EventType = "bike_status_changed"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string          `json:"user_id"`
	Role   domain.UserRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RentalPayload describes a rental lifecycle change.
type RentalPayload struct {
	UserID    string              `json:"user_id"`
	BikeID    string              `json:"bike_id"`
	Status    domain.RentalStatus `json:"status"`
	TotalCost float64             `json:"total_cost"`
}

// BikeStatusPayload describes a fleet status change.
type BikeStatusPayload struct {
	OldStatus domain.BikeStatus `json:"old_status"`
	NewStatus domain.BikeStatus `json:"new_status"`
}
