package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func newBikeFixture() (*BikeService, repository.BikeRepository, repository.RentalRepository, *capturedEvents) {
	store := repository.NewMemoryStore()
	captured := &capturedEvents{}
	svc := NewBikeService(BikeDependencies{BikeRepo: store.Bikes(), RentalRepo: store.Rentals(), Dispatcher: captured})
	return svc, store.Bikes(), store.Rentals(), captured
}

func TestBikeCreateDefaultsToAvailable(t *testing.T) {
	svc, _, _, _ := newBikeFixture()
	bike, err := svc.Create(context.Background(), BikeInput{
		Name:       ptr(" Cargo 1 "),
		Type:       ptr(domain.BikeTypeCity),
		HourlyRate: ptr(4.5),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cargo 1", bike.Name)
	assert.Equal(t, domain.BikeStatusAvailable, bike.Status)
	assert.NotEmpty(t, bike.ID)
}

func TestBikeCreateValidation(t *testing.T) {
	svc, _, _, _ := newBikeFixture()
	_, err := svc.Create(context.Background(), BikeInput{
		Type:       ptr(domain.BikeType("unicycle")),
		HourlyRate: ptr(-1.0),
	})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestBikeGetUnknownOrMalformedID(t *testing.T) {
	svc, _, _, _ := newBikeFixture()
	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = svc.Get(context.Background(), "6f1c9a52-3f0e-4c2e-9c59-1b7a3c7e0d11")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestBikeUpdatePublishesStatusChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _, captured := newBikeFixture()
	bike, err := svc.Create(ctx, BikeInput{Name: ptr("Road 2"), Type: ptr(domain.BikeTypeRoad), HourlyRate: ptr(6.0)})
	require.NoError(t, err)

	staff := &auth.Identity{UserID: "staff-1", UserType: domain.UserRoleStaff}
	updated, err := svc.Update(ctx, staff, bike.ID, BikeInput{Status: ptr(domain.BikeStatusMaintenance)})
	require.NoError(t, err)
	assert.Equal(t, domain.BikeStatusMaintenance, updated.Status)
	assert.Equal(t, "Road 2", updated.Name)

	require.Equal(t, []events.EventType{events.EventBikeStatusSet}, captured.types())
	payload := captured.events[0].Payload.(events.BikeStatusPayload)
	assert.Equal(t, domain.BikeStatusAvailable, payload.OldStatus)
	assert.Equal(t, domain.BikeStatusMaintenance, payload.NewStatus)
	assert.Equal(t, "staff-1", captured.events[0].Actor.UserID)

	_, err = svc.Update(ctx, staff, bike.ID, BikeInput{HourlyRate: ptr(7.0)})
	require.NoError(t, err)
	assert.Len(t, captured.types(), 1)
}

func TestBikeUpdateCannotSetRented(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newBikeFixture()
	bike, err := svc.Create(ctx, BikeInput{Name: ptr("E 1"), Type: ptr(domain.BikeTypeElectric), HourlyRate: ptr(9.0)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, nil, bike.ID, BikeInput{Status: ptr(domain.BikeStatusRented)})
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestBikeDeleteWithActiveRental(t *testing.T) {
	ctx := context.Background()
	svc, _, rentals, _ := newBikeFixture()
	bike, err := svc.Create(ctx, BikeInput{Name: ptr("MTB"), Type: ptr(domain.BikeTypeMountain), HourlyRate: ptr(5.0)})
	require.NoError(t, err)
	require.NoError(t, rentals.Create(ctx, &domain.Rental{UserID: "u1", BikeID: bike.ID, Status: domain.RentalStatusActive}))

	err = svc.Delete(ctx, bike.ID)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	other, err := svc.Create(ctx, BikeInput{Name: ptr("MTB 2"), Type: ptr(domain.BikeTypeMountain), HourlyRate: ptr(5.0)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, other.ID))
	_, err = svc.Get(ctx, other.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

// bookingDuringRead runs book once, right after the bike is read, so a rental
// lands between Update's read and its write.
type bookingDuringRead struct {
	repository.BikeRepository
	book func()
}

func (b *bookingDuringRead) GetByID(ctx context.Context, id string) (*domain.Bike, error) {
	bike, err := b.BikeRepository.GetByID(ctx, id)
	if b.book != nil {
		book := b.book
		b.book = nil
		book()
	}
	return bike, err
}

func TestBikeUpdateKeepsStatusSetByConcurrentRental(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	bike := &domain.Bike{Name: "City 9", Type: domain.BikeTypeCity, HourlyRate: 4.0, Status: domain.BikeStatusAvailable}
	require.NoError(t, store.Bikes().Create(ctx, bike))

	bikes := &bookingDuringRead{BikeRepository: store.Bikes()}
	bikes.book = func() {
		require.NoError(t, store.Rentals().Create(ctx, &domain.Rental{UserID: "u1", BikeID: bike.ID, Status: domain.RentalStatusActive}))
	}
	captured := &capturedEvents{}
	svc := NewBikeService(BikeDependencies{BikeRepo: bikes, RentalRepo: store.Rentals(), Dispatcher: captured})

	_, err := svc.Update(ctx, nil, bike.ID, BikeInput{Name: ptr("City 9 renamed")})
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Empty(t, captured.types())

	stored, err := store.Bikes().GetByID(ctx, bike.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BikeStatusRented, stored.Status)
	assert.Equal(t, "City 9", stored.Name)

	err = store.Rentals().Create(ctx, &domain.Rental{UserID: "u2", BikeID: bike.ID, Status: domain.RentalStatusActive})
	assert.ErrorIs(t, err, repository.ErrBikeUnavailable)
}
