package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pedalhub/rental-service/internal/observability"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(stdhttp.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorRendering(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	require.NoError(t, err)

	app := NewApp("test", MiddlewareOptions{Logger: zap.New(core), Metrics: metrics})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewConflict("bike is not available", map[string]any{"bike_id": "b1"})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db exploded")
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("unexpected")
	})

	status, body := get(t, app, "/conflict")
	assert.Equal(t, stdhttp.StatusConflict, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "bike is not available", body["message"])
	assert.Equal(t, "CONFLICT", body["error"])
	assert.Equal(t, map[string]any{"bike_id": "b1"}, body["details"])

	status, body = get(t, app, "/boom")
	assert.Equal(t, stdhttp.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, body, "error")

	status, _ = get(t, app, "/panic")
	assert.Equal(t, stdhttp.StatusInternalServerError, status)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.Equal(t, 2, logs.FilterMessage("request failed").Len())

	series, err := testutil.GatherAndCount(registry, "http_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 3, series)
}

func TestErrorRenderingExposesInternalErrors(t *testing.T) {
	app := NewApp("test", MiddlewareOptions{ExposeInternalErrors: true})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db exploded")
	})

	status, body := get(t, app, "/boom")
	assert.Equal(t, stdhttp.StatusInternalServerError, status)
	assert.Equal(t, "db exploded", body["error"])
}
