package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pedalhub/rental-service/internal/api/dto"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/service"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

// UsersHandler exposes account and session endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /api/v1/auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	session, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(sessionResponse(session)))
}

// Login handles POST /api/v1/auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(sessionResponse(session)))
}

// Logout handles POST /api/v1/auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromFiber(c)
	if err := h.auth.Logout(c.UserContext(), identity); err != nil {
		return err
	}
	return c.JSON(dto.OK(fiber.Map{"logged_out": true}))
}

// Me handles GET /api/v1/auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromFiber(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	user, err := h.auth.Profile(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

func sessionResponse(session *service.AuthSession) dto.SessionResponse {
	return dto.SessionResponse{
		User: dto.NewUserResponse(session.User),
		Auth: dto.AuthResponse{Token: session.Token, TokenType: "Bearer", ExpiresAt: session.ExpiresAt},
	}
}
