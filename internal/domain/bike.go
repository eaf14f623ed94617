package domain

import "time"

// BikeStatus enumerates fleet availability states.
type BikeStatus string

const (
	BikeStatusAvailable   BikeStatus = "available"
	BikeStatusRented      BikeStatus = "rented"
	BikeStatusMaintenance BikeStatus = "maintenance"
)

// Valid reports whether s is a known status.
func (s BikeStatus) Valid() bool {
	switch s {
	case BikeStatusAvailable, BikeStatusRented, BikeStatusMaintenance:
		return true
	}
	return false
}

// BikeType groups bikes for catalogue filtering.
type BikeType string

const (
	BikeTypeCity     BikeType = "city"
	BikeTypeMountain BikeType = "mountain"
	BikeTypeRoad     BikeType = "road"
	BikeTypeElectric BikeType = "electric"
)

// Bike is a rentable fleet item.
type Bike struct {
	ID          string
	Name        string
	Model       string
	Type        BikeType
	Description string
	Location    string
	HourlyRate  float64
	Status      BikeStatus
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
