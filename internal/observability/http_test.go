package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesReminderCollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	ReminderDispatch().WithLabelValues("sent").Inc()
	RemindersCancelled().WithLabelValues("submitted").Inc()
	DeliveryJobs().WithLabelValues("reclaimed").Inc()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `reminder_dispatch_total{outcome="sent"}`)
	require.Contains(t, string(body), `reminders_cancelled_total{reason="submitted"}`)
	require.Contains(t, string(body), "delivery_jobs_total")
}
