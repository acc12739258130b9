// handlers/tournament.go
package handlers

import (
	"game-matchmaking-system/middleware"
	"game-matchmaking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, tokens *services.TokenService) {
	gateway := middleware.GatewayAuthMiddleware()
	user := middleware.UserContextMiddleware(tokens)

	// 🔐 Internal routes — tournaments are created and abandoned by other services
	app.Post("/tournaments", gateway, tournamentService.CreateTournament)
	app.Post("/tournament/leave", gateway, tournamentService.LeaveTournament)

	// 🔐 Secured routes
	app.Get("/tournaments", user, tournamentService.GetUserTournaments)
	app.Get("/tournaments/matches", user, tournamentService.GetTournamentMatches)
	app.Get("/tournaments/players", user, tournamentService.GetTopPlayers)
	app.Post("/tournaments/next", user, tournamentService.NextTournamentGame)
	app.Get("/tournaments/status", user, tournamentService.UserTournamentStatus)
}
