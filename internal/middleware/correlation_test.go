package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/middleware"
)

func correlationApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"local":   middleware.GetCorrelationID(c),
			"context": middleware.CorrelationIDFromContext(c.UserContext()),
		})
	})
	return app
}

func TestCorrelationIDReusesInboundHeaders(t *testing.T) {
	cases := []struct {
		name   string
		header string
		value  string
	}{
		{name: "correlation header", header: middleware.HeaderCorrelationID, value: "evt-submission-42"},
		{name: "request id fallback", header: "X-Request-ID", value: "req-7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(tc.header, "  "+tc.value+" ")
			resp, err := correlationApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.value, resp.Header.Get(middleware.HeaderCorrelationID))

			var body map[string]string
			decodeBody(t, resp, &body)
			require.Equal(t, tc.value, body["local"])
			require.Equal(t, tc.value, body["context"])
		})
	}
}

func TestCorrelationIDReplacesMalformedValues(t *testing.T) {
	for _, value := range []string{"has space", "caf\u00e9", strings.Repeat("a", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.HeaderCorrelationID, value)
		resp, err := correlationApp().Test(req)
		require.NoError(t, err)

		issued := resp.Header.Get(middleware.HeaderCorrelationID)
		require.NotEqual(t, value, issued)
		_, err = uuid.Parse(issued)
		require.NoError(t, err)
	}
}
