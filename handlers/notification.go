// handlers/notification.go
package handlers

import (
	"errors"
	"log"

	"game-matchmaking-system/models"
	"game-matchmaking-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupNotificationRoutes mounts the websocket endpoint behind query-token
// auth. Browsers cannot set headers on websocket requests, so the token
// travels as ?token= and gets checked before the upgrade.
func SetupNotificationRoutes(app *fiber.App, db *gorm.DB, presence *services.PresenceService, tokens *services.TokenService) {
	app.Use("/ws/notifications", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		raw := c.Query("token")
		if raw == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "authentication token missing",
			})
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			log.Printf("❌ [WS_AUTH] Invalid token on %s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "invalid authentication token",
			})
		}
		userID, err := tokens.UserID(claims)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "invalid authentication token",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	})

	app.Get("/ws/notifications", websocket.New(func(conn *websocket.Conn) {
		userID := conn.Locals("user_id").(uint)

		var player models.Player
		if err := db.First(&player, "id = ?", userID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("DB Error loading player %d for websocket: %v", userID, err)
			}
			_ = conn.Close()
			return
		}

		client := services.NewClient(conn)
		if err := presence.HandleConnect(&player, client); err != nil {
			log.Printf("DB Error registering connection for user %d: %v", userID, err)
			client.Close()
			return
		}
		defer presence.HandleDisconnect(&player, client)

		// Inbound frames carry nothing; the read loop only notices the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}
