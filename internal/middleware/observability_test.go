package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsRouteTemplate(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(zerolog.New(&logs)))
	app.Get("/api/v1/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/v1/reminders/staff/assessments/:id", func(c *fiber.Ctx) error {
		c.Locals("user_role", RoleTeacher)
		return fiber.NewError(fiber.StatusNotFound, "assessment not found")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, logs.String())

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reminders/staff/assessments/17", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Contains(t, logs.String(), `"level":"warn"`)
	require.Contains(t, logs.String(), `"route":"/api/v1/reminders/staff/assessments/:id"`)
	require.Contains(t, logs.String(), `"status":404`)
	require.Contains(t, logs.String(), `"role":"teacher"`)
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=250ms", latencyBucket(180*time.Millisecond))
	require.Equal(t, ">500ms", latencyBucket(time.Second))
}
