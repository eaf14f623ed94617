package dto

import (
	"time"

	"github.com/pedalhub/rental-service/internal/domain"
)

// BikeRequest is used for both create and partial update.
type BikeRequest struct {
	Name        *string            `json:"name"`
	Model       *string            `json:"model"`
	Type        *domain.BikeType   `json:"type"`
	Description *string            `json:"description"`
	Location    *string            `json:"location"`
	HourlyRate  *float64           `json:"hourly_rate"`
	Status      *domain.BikeStatus `json:"status"`
	ImageURL    *string            `json:"image_url"`
}

// BikeResponse represents a fleet entry.
type BikeResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Model       string            `json:"model"`
	Type        domain.BikeType   `json:"type"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	HourlyRate  float64           `json:"hourly_rate"`
	Status      domain.BikeStatus `json:"status"`
	ImageURL    string            `json:"image_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewBikeResponse maps a domain bike.
func NewBikeResponse(bike *domain.Bike) BikeResponse {
	return BikeResponse{
		ID:          bike.ID,
		Name:        bike.Name,
		Model:       bike.Model,
		Type:        bike.Type,
		Description: bike.Description,
		Location:    bike.Location,
		HourlyRate:  bike.HourlyRate,
		Status:      bike.Status,
		ImageURL:    bike.ImageURL,
		CreatedAt:   bike.CreatedAt,
		UpdatedAt:   bike.UpdatedAt,
	}
}
