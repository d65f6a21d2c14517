package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-reminders/internal/utils"
)

// Roles carried in the JWT role claim.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	// RoleService identifies collaborating backends that publish domain events.
	RoleService = "service"
)

type roleSet map[string]struct{}

func newRoleSet(roles ...string) roleSet {
	set := make(roleSet, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func (s roleSet) allows(role string) bool {
	_, ok := s[role]
	return ok
}

// RequireRole admits callers whose user_role local is one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := newRoleSet(roles...)

	return func(c *fiber.Ctx) error {
		if !allowed.allows(normalizeRoleValue(c.Locals("user_role"))) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	var raw string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		raw = v
	case fmt.Stringer:
		raw = v.String()
	default:
		raw = fmt.Sprint(v)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
