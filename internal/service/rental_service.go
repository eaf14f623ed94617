package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/cache"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/repository"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

const ownerKeyPrefix = "rental-owner:"

// RentalService runs the rental lifecycle and answers ownership lookups.
type RentalService struct {
	rentals    repository.RentalRepository
	bikes      repository.BikeRepository
	dispatcher events.Dispatcher
	owners     cache.Cache
	ownerTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// RentalDependencies bundles collaborators for the rental service.
type RentalDependencies struct {
	RentalRepo repository.RentalRepository
	BikeRepo   repository.BikeRepository
	Dispatcher events.Dispatcher
	OwnerCache cache.Cache
	OwnerTTL   time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CreateRentalInput holds the booking window. A zero StartTime means now.
type CreateRentalInput struct {
	BikeID    string
	StartTime time.Time
	EndTime   time.Time
}

// NewRentalService constructs the service.
func NewRentalService(deps RentalDependencies) *RentalService {
	svc := &RentalService{
		rentals:    deps.RentalRepo,
		bikes:      deps.BikeRepo,
		dispatcher: deps.Dispatcher,
		owners:     deps.OwnerCache,
		ownerTTL:   deps.OwnerTTL,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Create books a bike for the caller.
func (s *RentalService) Create(ctx context.Context, actor *auth.Identity, input CreateRentalInput) (*domain.Rental, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated()
	}
	now := s.now().UTC()
	start := input.StartTime
	if start.IsZero() {
		start = now
	}
	if start.Before(now.Add(-time.Minute)) {
		return nil, apperrors.NewValidationError("start time is in the past", map[string]any{"start_time": start})
	}
	if !input.EndTime.After(start) {
		return nil, apperrors.NewValidationError("end time must be after start time", map[string]any{
			"start_time": start,
			"end_time":   input.EndTime,
		})
	}

	bike, err := s.lookupBike(ctx, input.BikeID)
	if err != nil {
		return nil, err
	}
	if bike.Status != domain.BikeStatusAvailable {
		return nil, bikeUnavailable(bike.ID)
	}

	rental := &domain.Rental{
		UserID:    actor.UserID,
		BikeID:    bike.ID,
		StartTime: start,
		EndTime:   input.EndTime.UTC(),
		TotalCost: rentalCost(start, input.EndTime, bike.HourlyRate),
		Status:    domain.RentalStatusActive,
	}
	if err := s.rentals.Create(ctx, rental); err != nil {
		switch {
		case errors.Is(err, repository.ErrBikeUnavailable):
			return nil, bikeUnavailable(bike.ID)
		case errors.Is(err, repository.ErrUnknownRenter):
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": actor.UserID})
		}
		return nil, err
	}

	s.rememberOwner(ctx, rental)
	s.publish(ctx, events.EventRentalCreated, actor, rental)
	return rental, nil
}

// Get fetches a rental by id.
func (s *RentalService) Get(ctx context.Context, id string) (*domain.Rental, error) {
	if !validID(id) {
		return nil, rentalNotFound(id)
	}
	rental, err := s.rentals.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rentalNotFound(id)
	}
	return rental, err
}

// ListForUser returns the rentals owned by userID.
func (s *RentalService) ListForUser(ctx context.Context, userID string, filter repository.RentalFilter) ([]domain.Rental, error) {
	if !validID(userID) {
		return []domain.Rental{}, nil
	}
	filter.UserID = &userID
	return s.rentals.List(ctx, filter)
}

// ListAll returns rentals across all users.
func (s *RentalService) ListAll(ctx context.Context, filter repository.RentalFilter) ([]domain.Rental, error) {
	return s.rentals.List(ctx, filter)
}

// Return completes an active rental. Usage is billed per started hour with a one hour minimum.
func (s *RentalService) Return(ctx context.Context, actor *auth.Identity, id string) (*domain.Rental, error) {
	rental, err := s.activeRental(ctx, id)
	if err != nil {
		return nil, err
	}
	bike, err := s.lookupBike(ctx, rental.BikeID)
	if err != nil {
		return nil, err
	}

	returnedAt := s.now().UTC()
	rental.ReturnedAt = &returnedAt
	rental.TotalCost = rentalCost(rental.StartTime, returnedAt, bike.HourlyRate)
	rental.Status = domain.RentalStatusCompleted
	if err := s.close(ctx, rental); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventRentalReturned, actor, rental)
	return rental, nil
}

// Cancel releases a rental that has not started yet.
func (s *RentalService) Cancel(ctx context.Context, actor *auth.Identity, id string) (*domain.Rental, error) {
	rental, err := s.activeRental(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !now.Before(rental.StartTime) {
		return nil, apperrors.NewConflict("rental already started", map[string]any{"start_time": rental.StartTime})
	}

	rental.ReturnedAt = &now
	rental.TotalCost = 0
	rental.Status = domain.RentalStatusCancelled
	if err := s.close(ctx, rental); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventRentalCancelled, actor, rental)
	return rental, nil
}

// OwnerOf returns the id of the user who booked the rental. Owners never change,
// so lookups are served from the cache when possible.
func (s *RentalService) OwnerOf(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", rentalNotFound(id)
	}
	if s.owners != nil {
		owner, err := s.owners.Get(ctx, ownerKeyPrefix+id)
		switch {
		case err == nil:
			return owner, nil
		case !errors.Is(err, cache.ErrNotFound):
			s.logger.Warn("owner cache read failed", zap.String("rental_id", id), zap.Error(err))
		}
	}

	rental, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	s.rememberOwner(ctx, rental)
	return rental.UserID, nil
}

func (s *RentalService) activeRental(ctx context.Context, id string) (*domain.Rental, error) {
	rental, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.Status != domain.RentalStatusActive {
		return nil, apperrors.NewConflict("rental is not active", map[string]any{"status": rental.Status})
	}
	return rental, nil
}

func (s *RentalService) close(ctx context.Context, rental *domain.Rental) error {
	err := s.rentals.Close(ctx, rental)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewConflict("rental is not active", map[string]any{"id": rental.ID})
	}
	return err
}

func (s *RentalService) lookupBike(ctx context.Context, id string) (*domain.Bike, error) {
	if !validID(id) {
		return nil, bikeNotFound(id)
	}
	bike, err := s.bikes.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bikeNotFound(id)
	}
	return bike, err
}

func (s *RentalService) rememberOwner(ctx context.Context, rental *domain.Rental) {
	if s.owners == nil {
		return
	}
	if err := s.owners.Set(ctx, ownerKeyPrefix+rental.ID, rental.UserID, s.ownerTTL); err != nil {
		s.logger.Warn("owner cache write failed", zap.String("rental_id", rental.ID), zap.Error(err))
	}
}

func (s *RentalService) publish(ctx context.Context, eventType events.EventType, actor *auth.Identity, rental *domain.Rental) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Subject: rental.ID,
		Actor:   actorOf(actor),
		Payload: events.RentalPayload{
			UserID:    rental.UserID,
			BikeID:    rental.BikeID,
			Status:    rental.Status,
			TotalCost: rental.TotalCost,
		},
	})
}

// rentalCost bills every started hour, never less than one.
func rentalCost(start, end time.Time, hourlyRate float64) float64 {
	hours := math.Ceil(end.Sub(start).Hours())
	if hours < 1 {
		hours = 1
	}
	return math.Round(hours*hourlyRate*100) / 100
}

func rentalNotFound(id string) error {
	return apperrors.NewNotFound("rental", map[string]any{"id": id})
}

func bikeUnavailable(id string) error {
	return apperrors.NewConflict("bike is not available", map[string]any{"bike_id": id})
}
