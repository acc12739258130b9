// middleware/user_context.go
package middleware

import (
	"log"
	"strings"

	"game-matchmaking-system/services"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware verifies the caller's Bearer token and attaches the
// numeric user id to the request context. User-facing routes fail with 403,
// unlike the internal routes which answer 401.
func UserContextMiddleware(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [USER_CTX] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "authentication token missing",
			})
		}

		raw := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(raw)
		if err != nil {
			log.Printf("❌ [USER_CTX] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "invalid authentication token",
			})
		}

		userID, err := tokens.UserID(claims)
		if err != nil {
			log.Printf("❌ [USER_CTX] Token without user_id for %s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "invalid authentication token",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
