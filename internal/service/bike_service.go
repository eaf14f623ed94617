package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/repository"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

// BikeService manages the fleet catalogue.
type BikeService struct {
	bikes      repository.BikeRepository
	rentals    repository.RentalRepository
	dispatcher events.Dispatcher
}

// BikeDependencies bundles repositories for the bike service.
type BikeDependencies struct {
	BikeRepo   repository.BikeRepository
	RentalRepo repository.RentalRepository
	Dispatcher events.Dispatcher
}

// BikeInput carries create and update fields. Nil pointers leave a field unchanged on update.
type BikeInput struct {
	Name        *string
	Model       *string
	Type        *domain.BikeType
	Description *string
	Location    *string
	HourlyRate  *float64
	Status      *domain.BikeStatus
	ImageURL    *string
}

// NewBikeService constructs the service.
func NewBikeService(deps BikeDependencies) *BikeService {
	return &BikeService{bikes: deps.BikeRepo, rentals: deps.RentalRepo, dispatcher: deps.Dispatcher}
}

// List returns bikes matching filter.
func (s *BikeService) List(ctx context.Context, filter repository.BikeFilter) ([]domain.Bike, error) {
	return s.bikes.List(ctx, filter)
}

// Get fetches a bike by id.
func (s *BikeService) Get(ctx context.Context, id string) (*domain.Bike, error) {
	if !validID(id) {
		return nil, bikeNotFound(id)
	}
	bike, err := s.bikes.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bikeNotFound(id)
	}
	return bike, err
}

// Create adds a bike to the fleet. New bikes are available unless a status is given.
func (s *BikeService) Create(ctx context.Context, input BikeInput) (*domain.Bike, error) {
	bike := &domain.Bike{Status: domain.BikeStatusAvailable}
	applyBikeInput(bike, input)
	if err := validateBike(bike); err != nil {
		return nil, err
	}
	if err := s.bikes.Create(ctx, bike); err != nil {
		return nil, err
	}
	return bike, nil
}

// Update patches a bike. The rented status is owned by the rental workflow and cannot be set directly.
func (s *BikeService) Update(ctx context.Context, actor *auth.Identity, id string, input BikeInput) (*domain.Bike, error) {
	bike, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := bike.Status

	if input.Status != nil && *input.Status != oldStatus {
		if *input.Status == domain.BikeStatusRented || oldStatus == domain.BikeStatusRented {
			return nil, apperrors.NewConflict("bike rental status is managed by rentals", map[string]any{"status": oldStatus})
		}
	}

	applyBikeInput(bike, input)
	if err := validateBike(bike); err != nil {
		return nil, err
	}
	switch err := s.bikes.Update(ctx, bike, oldStatus); {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, bikeNotFound(id)
	case errors.Is(err, repository.ErrStatusChanged):
		return nil, apperrors.NewConflict("bike status changed during update; retry", map[string]any{"bike_id": id})
	case err != nil:
		return nil, err
	}

	if bike.Status != oldStatus && s.dispatcher != nil {
		s.dispatcher.Publish(ctx, events.Event{
			Type:    events.EventBikeStatusSet,
			Subject: bike.ID,
			Actor:   actorOf(actor),
			Payload: events.BikeStatusPayload{OldStatus: oldStatus, NewStatus: bike.Status},
		})
	}
	return bike, nil
}

// Delete removes a bike that was never rented.
func (s *BikeService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return bikeNotFound(id)
	}
	active, err := s.rentals.HasActiveForBike(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return apperrors.NewConflict("bike has an active rental", map[string]any{"bike_id": id})
	}
	err = s.bikes.Delete(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return bikeNotFound(id)
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.NewConflict("bike has rental history; set it to maintenance instead", map[string]any{"bike_id": id})
	}
	return err
}

func applyBikeInput(bike *domain.Bike, input BikeInput) {
	if input.Name != nil {
		bike.Name = strings.TrimSpace(*input.Name)
	}
	if input.Model != nil {
		bike.Model = strings.TrimSpace(*input.Model)
	}
	if input.Type != nil {
		bike.Type = *input.Type
	}
	if input.Description != nil {
		bike.Description = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		bike.Location = strings.TrimSpace(*input.Location)
	}
	if input.HourlyRate != nil {
		bike.HourlyRate = *input.HourlyRate
	}
	if input.Status != nil {
		bike.Status = *input.Status
	}
	if input.ImageURL != nil {
		bike.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
}

func validateBike(bike *domain.Bike) error {
	details := map[string]any{}
	if bike.Name == "" {
		details["name"] = "required"
	}
	switch bike.Type {
	case domain.BikeTypeCity, domain.BikeTypeMountain, domain.BikeTypeRoad, domain.BikeTypeElectric:
	default:
		details["type"] = "must be one of city, mountain, road, electric"
	}
	if bike.HourlyRate < 0 {
		details["hourly_rate"] = "must not be negative"
	}
	if !bike.Status.Valid() {
		details["status"] = "must be one of available, rented, maintenance"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid bike", details)
	}
	return nil
}

func bikeNotFound(id string) error {
	return apperrors.NewNotFound("bike", map[string]any{"id": id})
}

func actorOf(identity *auth.Identity) events.Actor {
	if identity == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: identity.UserID, Role: identity.UserType}
}
