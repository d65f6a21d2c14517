package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/middleware"
)

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestRegisterRecoversPanicsWithCorrelation(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/api/v1/reminders/ops/dispatch", func(c *fiber.Ctx) error {
		panic("dispatcher exploded")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders/ops/dispatch", nil)
	req.Header.Set(middleware.HeaderCorrelationID, "ops-run-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "ops-run-1", resp.Header.Get(middleware.HeaderCorrelationID))

	require.Contains(t, logs.String(), "request handler panicked")
	require.Contains(t, logs.String(), `"correlation_id":"ops-run-1"`)
	require.Contains(t, logs.String(), "dispatcher exploded")
}

func TestRegisterAppliesConfiguredOrigins(t *testing.T) {
	app := fiber.New()
	middleware.Register(app, middleware.Config{AllowOrigins: "https://dashboard.gema.test"})
	app.Get("/api/v1/notifications", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Origin", "https://dashboard.gema.test")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://dashboard.gema.test", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), middleware.HeaderCorrelationID)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	other.Header.Set("Origin", "https://elsewhere.test")
	resp, err = app.Test(other)
	require.NoError(t, err)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
