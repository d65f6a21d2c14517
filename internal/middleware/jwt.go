package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-reminders/internal/utils"
)

const tokenLeeway = 30 * time.Second

// principal is the caller identity carried in a bearer token.
type principal struct {
	// userID is a uint for students and staff and the backend name for service tokens.
	userID interface{}
	role   string
}

// JWTProtected validates HMAC-signed bearer tokens that carry an expiry and
// stores the caller in the user_id and user_role locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "bearer token required")
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		caller := principalFromClaims(claims)
		if caller.userID != nil {
			c.Locals("user_id", caller.userID)
		}
		if caller.role != "" {
			c.Locals("user_role", caller.role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

func principalFromClaims(claims jwt.MapClaims) principal {
	caller := principal{role: roleFromClaims(claims)}

	for _, key := range []string{"sub", "user_id", "id"} {
		if id, ok := numericID(claims[key]); ok {
			caller.userID = id
			return caller
		}
	}

	// Service tokens name the calling backend instead of a numeric user.
	if caller.role == RoleService {
		if subject, err := claims.GetSubject(); err == nil && strings.TrimSpace(subject) != "" {
			caller.userID = strings.TrimSpace(subject)
		}
	}
	return caller
}

func numericID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint(v)) {
			return 0, false
		}
		return uint(v), true
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	if name, ok := claims["role"].(string); ok {
		if role := strings.ToLower(strings.TrimSpace(name)); role != "" {
			return role
		}
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, item := range roles {
			if name, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(name)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
