package dto

import (
	"time"

	"github.com/pedalhub/rental-service/internal/domain"
)

// CreateRentalRequest payload. StartTime defaults to now when omitted.
type CreateRentalRequest struct {
	BikeID    string     `json:"bike_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
}

// RentalResponse represents a booking.
type RentalResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	BikeID     string              `json:"bike_id"`
	StartTime  time.Time           `json:"start_time"`
	EndTime    time.Time           `json:"end_time"`
	ReturnedAt *time.Time          `json:"returned_at"`
	TotalCost  float64             `json:"total_cost"`
	Status     domain.RentalStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewRentalResponse maps a domain rental.
func NewRentalResponse(rental *domain.Rental) RentalResponse {
	return RentalResponse{
		ID:         rental.ID,
		UserID:     rental.UserID,
		BikeID:     rental.BikeID,
		StartTime:  rental.StartTime,
		EndTime:    rental.EndTime,
		ReturnedAt: rental.ReturnedAt,
		TotalCost:  rental.TotalCost,
		Status:     rental.Status,
		CreatedAt:  rental.CreatedAt,
		UpdatedAt:  rental.UpdatedAt,
	}
}

// NewRentalList maps a slice of rentals, never returning nil.
func NewRentalList(rentals []domain.Rental) []RentalResponse {
	items := make([]RentalResponse, 0, len(rentals))
	for i := range rentals {
		items = append(items, NewRentalResponse(&rentals[i]))
	}
	return items
}
