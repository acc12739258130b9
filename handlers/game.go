// handlers/game.go
package handlers

import (
	"game-matchmaking-system/middleware"
	"game-matchmaking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService, queueService *services.QueueService, tokens *services.TokenService) {
	gateway := middleware.GatewayAuthMiddleware()
	user := middleware.UserContextMiddleware(tokens)

	// 🔐 Internal routes — service-to-service, static Bearer token
	app.Post("/games", gateway, gameService.CreateGame)
	app.Post("/queue/leave", gateway, queueService.LeaveInternal)

	// 🔐 Secured routes — require a user token
	app.Get("/games/users/:id", user, gameService.GetUserGames)
	app.Patch("/games/:id", user, gameService.UpdateGame)

	app.Post("/challenges", user, gameService.Challenge)
	app.Get("/challenges", user, gameService.GetChallenges)
	app.Post("/challenges/accept", user, gameService.AcceptChallenge)
	app.Post("/challenges/decline", user, gameService.DeclineChallenge)

	app.Post("/queue/join", user, queueService.Join)
	app.Post("/queue/leave/me", user, queueService.Leave)

	app.Get("/players/search", user, gameService.SearchPlayers)
}
