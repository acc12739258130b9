package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-matchmaking-system/handlers"
	"game-matchmaking-system/models"
	"game-matchmaking-system/services"
	"game-matchmaking-system/utils"
	"game-matchmaking-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	serviceToken := os.Getenv("MATCHMAKING_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MATCHMAKING_SERVICE_TOKEN environment variable not set")
	}

	usersServiceURL := os.Getenv("USERS_SERVICE_URL")
	if usersServiceURL == "" {
		log.Fatal("USERS_SERVICE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.Game{},
		&models.GameInvite{},
		&models.Tournament{},
		&models.UserTournament{},
		&models.PresenceRoom{},
		&models.PlayerPresence{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	hub := services.NewHub()
	tokens := services.NewTokenService(jwtSecret)
	profiles := services.NewProfileServiceClient(usersServiceURL, serviceToken)

	gameService := services.NewGameService(db, hub)
	tournamentService := services.NewTournamentService(db, hub)
	queueService := services.NewQueueService(gameService)
	presenceService := services.NewPresenceService(db, hub, profiles, queueService, tournamentService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewPlayerSyncWorker(db, usersServiceURL, serviceToken)
	syncWorker.Start(ctx)
	go workers.PollArchives(ctx, db, 30*time.Second)

	gameService.StartInviteExpiryScheduler()

	handlers.SetupGameRoutes(app, gameService, queueService, tokens)
	handlers.SetupTournamentRoutes(app, tournamentService, tokens)
	handlers.SetupNotificationRoutes(app, db, presenceService, tokens)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Player Sync Worker running")
	log.Println("✅ Tournament archive polling running (every 30s)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
