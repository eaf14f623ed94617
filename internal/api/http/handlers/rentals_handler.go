package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pedalhub/rental-service/internal/api/dto"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/repository"
	"github.com/pedalhub/rental-service/internal/service"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

// RentalsHandler manages bookings.
type RentalsHandler struct {
	service *service.RentalService
}

// NewRentalsHandler constructs handler.
func NewRentalsHandler(rentalService *service.RentalService) *RentalsHandler {
	return &RentalsHandler{service: rentalService}
}

// CreateRental POST /api/v1/rentals.
func (h *RentalsHandler) CreateRental(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromFiber(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	var req dto.CreateRentalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.BikeID == "" || req.EndTime.IsZero() {
		return apperrors.NewValidationError("bike_id and end_time required", nil)
	}

	input := service.CreateRentalInput{BikeID: req.BikeID, EndTime: req.EndTime}
	if req.StartTime != nil {
		input.StartTime = *req.StartTime
	}
	rental, err := h.service.Create(c.UserContext(), identity, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.NewRentalResponse(rental)))
}

// ListRentals GET /api/v1/rentals.
func (h *RentalsHandler) ListRentals(c *fiber.Ctx) error {
	filter := rentalFilter(c)
	for key, target := range map[string]**string{"bike_id": &filter.BikeID, "user_id": &filter.UserID} {
		value := c.Query(key)
		if value == "" {
			continue
		}
		if _, err := uuid.Parse(value); err != nil {
			return apperrors.NewValidationError("invalid "+key, map[string]any{key: value})
		}
		*target = &value
	}
	rentals, err := h.service.ListAll(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalList(rentals)))
}

// ListMine GET /api/v1/rentals/mine.
func (h *RentalsHandler) ListMine(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromFiber(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	rentals, err := h.service.ListForUser(c.UserContext(), identity.UserID, rentalFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalList(rentals)))
}

// ListForUser GET /api/v1/users/:id/rentals.
func (h *RentalsHandler) ListForUser(c *fiber.Ctx) error {
	rentals, err := h.service.ListForUser(c.UserContext(), c.Params("id"), rentalFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalList(rentals)))
}

// GetRental GET /api/v1/rentals/:id.
func (h *RentalsHandler) GetRental(c *fiber.Ctx) error {
	rental, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalResponse(rental)))
}

// ReturnRental POST /api/v1/rentals/:id/return.
func (h *RentalsHandler) ReturnRental(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromFiber(c)
	rental, err := h.service.Return(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalResponse(rental)))
}

// CancelRental POST /api/v1/rentals/:id/cancel.
func (h *RentalsHandler) CancelRental(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromFiber(c)
	rental, err := h.service.Cancel(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewRentalResponse(rental)))
}

// RentalOwner resolves the owner of the rental addressed by the :id route parameter.
func (h *RentalsHandler) RentalOwner(c *fiber.Ctx) (string, error) {
	return h.service.OwnerOf(c.UserContext(), c.Params("id"))
}

// UserOwner treats the :id route parameter as the owning user.
func UserOwner(c *fiber.Ctx) (string, error) {
	return c.Params("id"), nil
}

func rentalFilter(c *fiber.Ctx) repository.RentalFilter {
	filter := repository.RentalFilter{}
	for _, s := range csvQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.RentalStatus(s))
	}
	filter.Limit, filter.Offset = pageParams(c)
	return filter
}
