package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-reminders/internal/utils"
)

// Auth role groups understood by WithAuth.
const (
	AuthRoleAny     = "any"
	AuthRoleStaff   = "staff"
	AuthRoleStudent = RoleStudent
	AuthRoleService = RoleService
)

var authRoleGroups = map[string]roleSet{
	AuthRoleStaff:   newRoleSet(RoleAdmin, RoleTeacher),
	AuthRoleStudent: newRoleSet(RoleStudent),
	// Admins may replay events by hand.
	AuthRoleService: newRoleSet(RoleService, RoleAdmin),
}

// AuthOptions configures the WithAuth guard.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth returns a guard that enforces an authenticated principal and a role group.
func WithAuth(opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser || role != AuthRoleAny
	allowed, grouped := authRoleGroups[role]
	if !grouped {
		allowed = newRoleSet(role)
	}

	return func(c *fiber.Ctx) error {
		if requireUser && c.Locals("user_id") == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role == AuthRoleAny {
			return c.Next()
		}

		if !allowed.allows(normalizeRoleValue(c.Locals("user_role"))) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return c.Next()
	}
}
