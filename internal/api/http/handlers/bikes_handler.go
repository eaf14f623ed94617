package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pedalhub/rental-service/internal/api/dto"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/repository"
	"github.com/pedalhub/rental-service/internal/service"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

// BikesHandler serves the fleet catalogue.
type BikesHandler struct {
	service *service.BikeService
}

// NewBikesHandler constructs handler.
func NewBikesHandler(bikeService *service.BikeService) *BikesHandler {
	return &BikesHandler{service: bikeService}
}

// ListBikes GET /api/v1/bikes.
func (h *BikesHandler) ListBikes(c *fiber.Ctx) error {
	filter := repository.BikeFilter{}
	if location := c.Query("location"); location != "" {
		filter.Location = &location
	}
	if term := c.Query("q"); term != "" {
		filter.SearchTerm = &term
	}
	for _, s := range csvQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.BikeStatus(s))
	}
	for _, t := range csvQuery(c, "type") {
		filter.Types = append(filter.Types, domain.BikeType(t))
	}
	if raw := c.Query("max_rate"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid max_rate", map[string]any{"max_rate": raw})
		}
		filter.MaxRate = &rate
	}
	filter.Limit, filter.Offset = pageParams(c)

	bikes, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.BikeResponse, 0, len(bikes))
	for i := range bikes {
		items = append(items, dto.NewBikeResponse(&bikes[i]))
	}
	return c.JSON(dto.OK(items))
}

// GetBike GET /api/v1/bikes/:id.
func (h *BikesHandler) GetBike(c *fiber.Ctx) error {
	bike, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewBikeResponse(bike)))
}

// CreateBike POST /api/v1/bikes.
func (h *BikesHandler) CreateBike(c *fiber.Ctx) error {
	var req dto.BikeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == nil || req.Type == nil || req.HourlyRate == nil {
		return apperrors.NewValidationError("name, type, hourly_rate required", nil)
	}
	bike, err := h.service.Create(c.UserContext(), bikeInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.NewBikeResponse(bike)))
}

// UpdateBike PUT /api/v1/bikes/:id.
func (h *BikesHandler) UpdateBike(c *fiber.Ctx) error {
	var req dto.BikeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	identity, _ := auth.IdentityFromFiber(c)
	bike, err := h.service.Update(c.UserContext(), identity, c.Params("id"), bikeInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewBikeResponse(bike)))
}

// DeleteBike DELETE /api/v1/bikes/:id.
func (h *BikesHandler) DeleteBike(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func bikeInput(req dto.BikeRequest) service.BikeInput {
	return service.BikeInput{
		Name:        req.Name,
		Model:       req.Model,
		Type:        req.Type,
		Description: req.Description,
		Location:    req.Location,
		HourlyRate:  req.HourlyRate,
		Status:      req.Status,
		ImageURL:    req.ImageURL,
	}
}
