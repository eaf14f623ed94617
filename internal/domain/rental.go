package domain

import "time"

// RentalStatus enumerates rental lifecycle states.
type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// Rental binds a user to a bike for a time window.
type Rental struct {
	ID         string
	UserID     string
	BikeID     string
	StartTime  time.Time
	EndTime    time.Time
	ReturnedAt *time.Time
	TotalCost  float64
	Status     RentalStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
