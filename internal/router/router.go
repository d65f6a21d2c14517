package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-reminders/internal/config"
	"github.com/noah-isme/gema-reminders/internal/handler"
	"github.com/noah-isme/gema-reminders/internal/middleware"
	"github.com/noah-isme/gema-reminders/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EventHandler        *handler.EventHandler
	OpsHandler          *handler.OpsHandler
	PolicyHandler       *handler.PolicyHandler
	ReminderHandler     *handler.ReminderHandler
	AuditHandler        *handler.AuditHandler
	NotificationHandler *handler.NotificationHandler
	HealthProbes        map[string]handler.HealthProbe
	JWTMiddleware       fiber.Handler
	EventRateLimit      int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	reminders := app.Group("/api/v1/reminders", jwtMiddleware)

	// Domain events from the course, enrollment and submission services
	if deps.EventHandler != nil {
		events := reminders.Group("/events",
			middleware.WithAuth(middleware.AuthOptions{Role: middleware.AuthRoleService}),
			middleware.RateLimit("events", deps.EventRateLimit, time.Second),
		)
		deps.EventHandler.Register(events)
	}

	// Operator triggers and queue inspection
	if deps.OpsHandler != nil {
		ops := reminders.Group("/ops", middleware.RequireRole(middleware.RoleAdmin))
		deps.OpsHandler.Register(ops)
	}

	if deps.PolicyHandler != nil {
		policies := reminders.Group("/policies", middleware.RequireRole(middleware.RoleAdmin))
		deps.PolicyHandler.Register(policies)
	}

	if deps.AuditHandler != nil {
		audit := reminders.Group("/audit", middleware.WithAuth(middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
		deps.AuditHandler.Register(audit)
	}

	if deps.ReminderHandler != nil {
		mine := reminders.Group("/me", middleware.WithAuth(middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
		deps.ReminderHandler.RegisterStudent(mine)

		staff := reminders.Group("/staff", middleware.WithAuth(middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
		deps.ReminderHandler.RegisterStaff(staff)
	}

	// Dashboard inbox
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v1/notifications", jwtMiddleware, middleware.WithAuth(middleware.AuthOptions{RequireUser: true}))
		deps.NotificationHandler.Register(notifications)
	}
}
