package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pedalhub/rental-service/internal/api/http/handlers"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/cache"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/observability"
	"github.com/pedalhub/rental-service/internal/persistence"
	"github.com/pedalhub/rental-service/internal/repository"
	"github.com/pedalhub/rental-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *repository.MemoryStore
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager("router-secret", time.Hour)
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	kv := cache.NewMemory("test")
	revocations := auth.NewRevocations(kv)
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    store.Users(),
		Tokens:      tokens,
		Revocations: revocations,
		BcryptCost:  bcrypt.MinCost,
	})
	bikeService := service.NewBikeService(service.BikeDependencies{
		BikeRepo:   store.Bikes(),
		RentalRepo: store.Rentals(),
		Dispatcher: dispatcher,
	})
	rentalService := service.NewRentalService(service.RentalDependencies{
		RentalRepo: store.Rentals(),
		BikeRepo:   store.Bikes(),
		Dispatcher: dispatcher,
		OwnerCache: kv,
		OwnerTTL:   time.Minute,
		Logger:     logger,
	})

	app := NewApp("test", MiddlewareOptions{Logger: logger, Metrics: metrics})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "v0", &persistence.Postgres{}, &persistence.Redis{}),
		Users:          handlers.NewUsersHandler(authService),
		Bikes:          handlers.NewBikesHandler(bikeService),
		Rentals:        handlers.NewRentalsHandler(rentalService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, auth.AuthMiddlewareOptions{Revocations: revocations, Logger: logger, Metrics: metrics}),
		Authorizer:     auth.NewAuthorizer(logger, metrics),
		Gatherer:       registry,
	})
	return &testServer{app: app, store: store, tokens: tokens}
}

// seedUser stores an account directly and returns a bearer token for it.
func (s *testServer) seedUser(t *testing.T, email string, role domain.UserRole) (string, string) {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	token, _, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return user.ID, token
}

func (s *testServer) seedBike(t *testing.T) string {
	t.Helper()
	bike := &domain.Bike{Name: "City 1", Type: domain.BikeTypeCity, HourlyRate: 3, Status: domain.BikeStatusAvailable}
	require.NoError(t, s.store.Bikes().Create(context.Background(), bike))
	return bike.ID
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func dataField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return data[key]
}

func TestHealthAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, stdhttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, stdhttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["dependencies"])

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["error"])
}

func TestBikeRoutesEnforceRoles(t *testing.T) {
	srv := newTestServer(t)
	_, customer := srv.seedUser(t, "rider@example.com", domain.UserRoleCustomer)
	_, staff := srv.seedUser(t, "staff@example.com", domain.UserRoleStaff)
	_, admin := srv.seedUser(t, "admin@example.com", domain.UserRoleAdmin)
	newBike := map[string]any{"name": "Gravel", "type": "road", "hourly_rate": 7.5}

	status, body := srv.do(t, stdhttp.MethodPost, "/api/v1/bikes", "", newBike)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "Authentication invalid", body["message"])

	status, body = srv.do(t, stdhttp.MethodPost, "/api/v1/bikes", customer, newBike)
	assert.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "You do not have permission to access this resource", body["message"])

	status, body = srv.do(t, stdhttp.MethodPost, "/api/v1/bikes", staff, newBike)
	require.Equal(t, stdhttp.StatusCreated, status)
	bikeID := dataField(t, body, "id").(string)
	assert.Equal(t, "available", dataField(t, body, "status"))

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/bikes", "", nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, stdhttp.MethodDelete, "/api/v1/bikes/"+bikeID, staff, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = srv.do(t, stdhttp.MethodDelete, "/api/v1/bikes/"+bikeID, admin, nil)
	assert.Equal(t, stdhttp.StatusNoContent, status)

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/bikes/"+bikeID, "", nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Equal(t, "bike not found", body["message"])
}

func TestRentalOwnership(t *testing.T) {
	srv := newTestServer(t)
	bikeID := srv.seedBike(t)
	_, owner := srv.seedUser(t, "owner@example.com", domain.UserRoleCustomer)
	_, other := srv.seedUser(t, "other@example.com", domain.UserRoleCustomer)
	_, admin := srv.seedUser(t, "admin@example.com", domain.UserRoleAdmin)
	_, staff := srv.seedUser(t, "staff@example.com", domain.UserRoleStaff)

	status, body := srv.do(t, stdhttp.MethodPost, "/api/v1/rentals", staff, map[string]any{
		"bike_id":  bikeID,
		"end_time": time.Now().Add(2 * time.Hour).UTC(),
	})
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body = srv.do(t, stdhttp.MethodPost, "/api/v1/rentals", owner, map[string]any{
		"bike_id":  bikeID,
		"end_time": time.Now().Add(2 * time.Hour).UTC(),
	})
	require.Equal(t, stdhttp.StatusCreated, status, "%v", body)
	rentalID := dataField(t, body, "id").(string)
	path := "/api/v1/rentals/" + rentalID

	status, body = srv.do(t, stdhttp.MethodGet, path, other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, false, body["success"])

	status, _ = srv.do(t, stdhttp.MethodGet, path, owner, nil)
	assert.Equal(t, stdhttp.StatusOK, status)

	status, _ = srv.do(t, stdhttp.MethodGet, path, admin, nil)
	assert.Equal(t, stdhttp.StatusOK, status)

	status, _ = srv.do(t, stdhttp.MethodPost, path+"/return", other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body = srv.do(t, stdhttp.MethodPost, path+"/return", owner, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "completed", dataField(t, body, "status"))

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/rentals/"+"0b6f3a7e-1d2c-4e5f-8a9b-0c1d2e3f4a5b", owner, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Equal(t, "rental not found", body["message"])

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/rentals", staff, nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, stdhttp.MethodGet, "/api/v1/rentals", owner, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/rentals/mine", other, nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestUserRentalsOwnership(t *testing.T) {
	srv := newTestServer(t)
	ownerID, owner := srv.seedUser(t, "owner@example.com", domain.UserRoleCustomer)
	_, other := srv.seedUser(t, "other@example.com", domain.UserRoleCustomer)
	_, admin := srv.seedUser(t, "admin@example.com", domain.UserRoleAdmin)
	path := fmt.Sprintf("/api/v1/users/%s/rentals", ownerID)

	status, _ := srv.do(t, stdhttp.MethodGet, path, other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	for _, token := range []string{owner, admin} {
		status, body := srv.do(t, stdhttp.MethodGet, path, token, nil)
		assert.Equal(t, stdhttp.StatusOK, status)
		assert.Equal(t, true, body["success"])
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, stdhttp.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse",
	})
	require.Equal(t, stdhttp.StatusCreated, status, "%v", body)

	status, body = srv.do(t, stdhttp.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse",
	})
	assert.Equal(t, stdhttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error"])

	status, body = srv.do(t, stdhttp.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "correct horse",
	})
	require.Equal(t, stdhttp.StatusOK, status)
	token := dataField(t, body, "auth").(map[string]any)["token"].(string)

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "ada@example.com", dataField(t, body, "email"))
	assert.Equal(t, "customer", dataField(t, body, "role"))

	status, _ = srv.do(t, stdhttp.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)

	status, body = srv.do(t, stdhttp.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "token revoked", body["error"])

	status, _ = srv.do(t, stdhttp.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
}

func TestMetricsEndpointExposesGateDecisions(t *testing.T) {
	srv := newTestServer(t)
	_, customer := srv.seedUser(t, "rider@example.com", domain.UserRoleCustomer)
	srv.do(t, stdhttp.MethodGet, "/api/v1/rentals", customer, nil)

	req := httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `auth_gate_decisions_total{gate="role",outcome="forbidden"} 1`)
	assert.Contains(t, string(raw), `auth_gate_decisions_total{gate="authentication",outcome="allowed"} 1`)
}
