package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pedalhub/rental-service/internal/domain"
)

// MemoryStore keeps users, bikes and rentals in process. It backs the service
// when POSTGRES_DSN is empty and mirrors the Postgres repositories' semantics,
// including pgx.ErrNoRows for missing rows.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	bikes   map[string]domain.Bike
	rentals map[string]domain.Rental
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[string]domain.User{},
		bikes:   map[string]domain.Bike{},
		rentals: map[string]domain.Rental{},
		now:     time.Now,
	}
}

// Users returns the store's user repository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Bikes returns the store's bike repository.
func (s *MemoryStore) Bikes() BikeRepository { return memoryBikes{s} }

// Rentals returns the store's rental repository.
func (s *MemoryStore) Rentals() RentalRepository { return memoryRentals{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = r.s.now().UTC()
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryBikes struct{ s *MemoryStore }

func (r memoryBikes) Create(_ context.Context, bike *domain.Bike) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bike.ID = uuid.NewString()
	bike.CreatedAt = r.s.now().UTC()
	bike.UpdatedAt = bike.CreatedAt
	r.s.bikes[bike.ID] = *bike
	return nil
}

func (r memoryBikes) Update(_ context.Context, bike *domain.Bike, expected domain.BikeStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.bikes[bike.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Status != expected {
		return ErrStatusChanged
	}
	bike.UpdatedAt = r.s.now().UTC()
	r.s.bikes[bike.ID] = *bike
	return nil
}

func (r memoryBikes) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bikes[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, rental := range r.s.rentals {
		if rental.BikeID == id {
			return ErrReferenced
		}
	}
	delete(r.s.bikes, id)
	return nil
}

func (r memoryBikes) GetByID(_ context.Context, id string) (*domain.Bike, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	bike, ok := r.s.bikes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &bike, nil
}

func (r memoryBikes) List(_ context.Context, filter BikeFilter) ([]domain.Bike, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Bike{}
	for _, bike := range r.s.bikes {
		if matchesBike(bike, filter) {
			result = append(result, bike)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return page(result, filter.Limit, filter.Offset), nil
}

func matchesBike(bike domain.Bike, filter BikeFilter) bool {
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, bike.Status) {
		return false
	}
	if len(filter.Types) > 0 && !contains(filter.Types, bike.Type) {
		return false
	}
	if filter.Location != nil && bike.Location != *filter.Location {
		return false
	}
	if filter.MaxRate != nil && bike.HourlyRate > *filter.MaxRate {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if !strings.Contains(strings.ToLower(bike.Name), term) && !strings.Contains(strings.ToLower(bike.Model), term) {
			return false
		}
	}
	return true
}

type memoryRentals struct{ s *MemoryStore }

func (r memoryRentals) Create(_ context.Context, rental *domain.Rental) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bike, ok := r.s.bikes[rental.BikeID]
	if !ok || bike.Status != domain.BikeStatusAvailable {
		return ErrBikeUnavailable
	}
	now := r.s.now().UTC()
	bike.Status = domain.BikeStatusRented
	bike.UpdatedAt = now
	r.s.bikes[bike.ID] = bike

	rental.ID = uuid.NewString()
	rental.CreatedAt = now
	rental.UpdatedAt = now
	r.s.rentals[rental.ID] = *rental
	return nil
}

func (r memoryRentals) Close(_ context.Context, rental *domain.Rental) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rentals[rental.ID]
	if !ok || stored.Status != domain.RentalStatusActive {
		return pgx.ErrNoRows
	}
	now := r.s.now().UTC()
	stored.Status = rental.Status
	stored.ReturnedAt = rental.ReturnedAt
	stored.TotalCost = rental.TotalCost
	stored.UpdatedAt = now
	r.s.rentals[rental.ID] = stored
	rental.UpdatedAt = now

	if bike, ok := r.s.bikes[rental.BikeID]; ok && bike.Status == domain.BikeStatusRented {
		bike.Status = domain.BikeStatusAvailable
		bike.UpdatedAt = now
		r.s.bikes[bike.ID] = bike
	}
	return nil
}

func (r memoryRentals) GetByID(_ context.Context, id string) (*domain.Rental, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rental, ok := r.s.rentals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rental, nil
}

func (r memoryRentals) List(_ context.Context, filter RentalFilter) ([]domain.Rental, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Rental{}
	for _, rental := range r.s.rentals {
		if filter.UserID != nil && rental.UserID != *filter.UserID {
			continue
		}
		if filter.BikeID != nil && rental.BikeID != *filter.BikeID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, rental.Status) {
			continue
		}
		result = append(result, rental)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	return page(result, filter.Limit, filter.Offset), nil
}

func (r memoryRentals) HasActiveForBike(_ context.Context, bikeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rental := range r.s.rentals {
		if rental.BikeID == bikeID && rental.Status == domain.RentalStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = normalizePage(limit, offset)
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
