// services/tournament_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"game-matchmaking-system/models"
	"game-matchmaking-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	ErrAlreadyInTournament = errors.New("user already in a tournament")
	ErrDuplicatePlayer     = errors.New("duplicate players")
)

type TournamentService struct {
	DB    *gorm.DB
	Hub   *Hub
	locks *utils.KeyedMutex
}

func NewTournamentService(db *gorm.DB, hub *Hub) *TournamentService {
	return &TournamentService{DB: db, Hub: hub, locks: utils.NewKeyedMutex()}
}

type tournamentPlayerReq struct {
	ID uint `json:"id"`
}

// CreateTournament creates a tournament with its participants and seeds the
// first round's game between the two lowest-id players. Any failure after
// partial creation rolls everything back.
//
// Service-to-service only. Body: players ([{id}, ...], size >= 2), name
// (optional).
func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	var req struct {
		Players []tournamentPlayerReq `json:"players"`
		Name    string                `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if len(req.Players) < 2 {
		return c.Status(400).JSON(fiber.Map{"error": "at least two players are required"})
	}

	seen := make(map[uint]bool, len(req.Players))
	ids := make([]uint, 0, len(req.Players))
	for _, p := range req.Players {
		if p.ID == 0 {
			return c.Status(400).JSON(fiber.Map{"error": "player id is required"})
		}
		if seen[p.ID] {
			return c.Status(400).JSON(fiber.Map{"error": "duplicate players"})
		}
		seen[p.ID] = true
		ids = append(ids, p.ID)
	}

	var players []models.Player
	if err := s.DB.Where("id IN ?", ids).Find(&players).Error; err != nil {
		log.Printf("DB Error resolving tournament players: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(players) != len(ids) {
		return c.Status(404).JSON(fiber.Map{"error": "player does not exist"})
	}

	// Seeding order is ascending numeric id, not registration order.
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	s.locks.Lock(ids...)
	defer s.locks.Unlock(ids...)

	tournament := &models.Tournament{
		Name:   req.Name,
		Status: models.TournamentStatusWaiting,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			var count int64
			if err := tx.Model(&models.UserTournament{}).
				Joins("JOIN tournaments ON tournaments.id = user_tournaments.tournament_id").
				Where("user_tournaments.player_id = ?", id).
				Where("tournaments.status <> ?", models.TournamentStatusFinished).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrAlreadyInTournament
			}
		}

		if err := tx.Create(tournament).Error; err != nil {
			return err
		}

		name := tournament.Name
		if name == "" {
			name = fmt.Sprintf("tournament %d", tournament.ID)
		}
		if err := tx.Model(tournament).Updates(map[string]interface{}{
			"name": name,
			"slug": slug.Make(name),
		}).Error; err != nil {
			return err
		}

		for _, p := range players {
			if err := tx.Create(&models.UserTournament{
				PlayerID:     p.ID,
				TournamentID: tournament.ID,
				Status:       models.UserTournamentPlaying,
			}).Error; err != nil {
				return err
			}
		}

		// First game pairs the two lowest ids. Rolling back the transaction
		// deletes it along with the tournament.
		tournamentID := tournament.ID
		return tx.Create(&models.Game{
			PlayerLeftID:  players[0].ID,
			PlayerRightID: players[1].ID,
			TournamentID:  &tournamentID,
			Status:        models.GameStatusWaiting,
		}).Error
	})
	switch {
	case errors.Is(err, ErrAlreadyInTournament):
		return c.Status(409).JSON(fiber.Map{"error": "user already in a tournament"})
	case err != nil:
		log.Printf("DB Error creating tournament: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "error while creating the tournament"})
	}

	return c.Status(201).JSON(fiber.Map{"tournament_id": tournament.ID})
}

// GetUserTournaments lists the tournaments the authenticated user is still
// PLAYING in.
func (s *TournamentService) GetUserTournaments(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var rows []models.UserTournament
	if err := s.DB.Where("player_id = ? AND status = ?", userID, models.UserTournamentPlaying).
		Find(&rows).Error; err != nil {
		log.Printf("DB Error fetching tournaments for user %d: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(rows) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no tournaments found"})
	}

	type tournamentView struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	views := make([]tournamentView, 0, len(rows))
	for _, row := range rows {
		var t models.Tournament
		if err := s.DB.First(&t, "id = ?", row.TournamentID).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
		}
		views = append(views, tournamentView{ID: t.ID, Status: t.Status})
	}
	return c.JSON(fiber.Map{"detail": views})
}

func (s *TournamentService) getTournament(c *fiber.Ctx, id uint) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(404).JSON(fiber.Map{"error": "tournament does not exist"})
		}
		return nil, c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	return &t, nil
}

// GetTournamentMatches lists the games of one tournament.
func (s *TournamentService) GetTournamentMatches(c *fiber.Ctx) error {
	id := uint(c.QueryInt("id"))
	if id == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	tournament, err := s.getTournament(c, id)
	if tournament == nil {
		return err
	}

	var games []models.Game
	if err := s.DB.Where("tournament_id = ?", tournament.ID).Find(&games).Error; err != nil {
		log.Printf("DB Error fetching matches for tournament %d: %v", tournament.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(games) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no matches found"})
	}

	ids := make([]uint, 0, len(games)*2)
	for _, g := range games {
		ids = append(ids, g.PlayerLeftID, g.PlayerRightID)
	}
	var players []models.Player
	if err := s.DB.Where("id IN ?", ids).Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	names := make(map[uint]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Username
	}

	type matchView struct {
		ID               uint   `json:"id"`
		PlayerLeft       string `json:"playerLeft"`
		PlayerRight      string `json:"playerRight"`
		PlayerLeftID     uint   `json:"playerLeftId"`
		PlayerRightID    uint   `json:"playerRightId"`
		PlayerLeftScore  int    `json:"playerLeftScore"`
		PlayerRightScore int    `json:"playerRightScore"`
		Status           string `json:"status"`
	}
	views := make([]matchView, 0, len(games))
	for _, g := range games {
		views = append(views, matchView{
			ID:               g.ID,
			PlayerLeft:       names[g.PlayerLeftID],
			PlayerRight:      names[g.PlayerRightID],
			PlayerLeftID:     g.PlayerLeftID,
			PlayerRightID:    g.PlayerRightID,
			PlayerLeftScore:  g.PlayerLeftScore,
			PlayerRightScore: g.PlayerRightScore,
			Status:           g.Status,
		})
	}
	return c.JSON(fiber.Map{"detail": views})
}

// GetTopPlayers lists every participant of a tournament.
func (s *TournamentService) GetTopPlayers(c *fiber.Ctx) error {
	id := uint(c.QueryInt("tournament_id"))
	if id == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	tournament, err := s.getTournament(c, id)
	if tournament == nil {
		return err
	}

	var rows []models.UserTournament
	if err := s.DB.Where("tournament_id = ?", tournament.ID).Find(&rows).Error; err != nil {
		log.Printf("DB Error fetching players for tournament %d: %v", tournament.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(rows) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no players found"})
	}

	type playerView struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	}
	views := make([]playerView, 0, len(rows))
	for _, row := range rows {
		var p models.Player
		if err := s.DB.First(&p, "id = ?", row.PlayerID).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
		}
		views = append(views, playerView{ID: p.ID, Username: p.Username})
	}
	return c.JSON(fiber.Map{"players": views})
}

// NextTournamentGame advances the bracket. One remaining PLAYING player is
// declared winner and the tournament finishes; otherwise the two lowest-id
// remaining players get a game. Repeated calls for the same pairing return
// the existing live game, so advancement is idempotent.
func (s *TournamentService) NextTournamentGame(c *fiber.Ctx) error {
	var req struct {
		TournamentID uint `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.TournamentID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	tournament, err := s.getTournament(c, req.TournamentID)
	if tournament == nil {
		return err
	}

	var playing []models.UserTournament
	if err := s.DB.Where("tournament_id = ? AND status = ?", tournament.ID, models.UserTournamentPlaying).
		Order("player_id ASC").
		Find(&playing).Error; err != nil {
		log.Printf("DB Error fetching playing users for tournament %d: %v", tournament.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	if len(playing) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "No players playing"})
	}

	if len(playing) == 1 {
		var winner models.Player
		if err := s.DB.First(&winner, "id = ?", playing[0].PlayerID).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
		}
		if err := s.DB.Model(tournament).Updates(map[string]interface{}{
			"winner_id": winner.ID,
			"status":    models.TournamentStatusFinished,
		}).Error; err != nil {
			log.Printf("DB Error finishing tournament %d: %v", tournament.ID, err)
			return c.Status(500).JSON(fiber.Map{"error": "error while updating the tournament"})
		}
		log.Printf("🏆 Tournament %d finished, winner: %s", tournament.ID, winner.Username)
		return c.JSON(fiber.Map{"winner": winner.Username})
	}

	leftID, rightID := playing[0].PlayerID, playing[1].PlayerID

	s.locks.Lock(leftID, rightID)
	defer s.locks.Unlock(leftID, rightID)

	names := make(map[uint]string, 2)
	var pair []models.Player
	if err := s.DB.Where("id IN ?", []uint{leftID, rightID}).Find(&pair).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	for _, p := range pair {
		names[p.ID] = p.Username
	}

	payload := func(g *models.Game) fiber.Map {
		return fiber.Map{"game": fiber.Map{
			"id":            g.ID,
			"status":        g.Status,
			"playerLeft":    names[g.PlayerLeftID],
			"playerLeftId":  g.PlayerLeftID,
			"playerRight":   names[g.PlayerRightID],
			"playerRightId": g.PlayerRightID,
		}}
	}

	var existing models.Game
	err = s.DB.Where("player_left_id = ? AND player_right_id = ? AND tournament_id = ?", leftID, rightID, tournament.ID).
		Where("status IN ?", models.LiveGameStatuses).
		First(&existing).Error
	if err == nil {
		return c.JSON(payload(&existing))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	tournamentID := tournament.ID
	game := &models.Game{
		PlayerLeftID:  leftID,
		PlayerRightID: rightID,
		TournamentID:  &tournamentID,
		Status:        models.GameStatusWaiting,
	}
	if err := s.DB.Create(game).Error; err != nil {
		log.Printf("DB Error creating next game for tournament %d: %v", tournament.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Error while creating the game"})
	}

	s.Hub.Publish(BroadcastGroup, Notification{
		NType:   NotificationTournamentUpdate,
		Message: fmt.Sprintf("tournament %d: next match ready", tournament.ID),
		Payload: fiber.Map{"tournament_id": tournament.ID, "game_id": game.ID},
	})

	return c.Status(201).JSON(payload(game))
}

// UserTournamentStatus reports the authenticated user's status inside one
// tournament.
func (s *TournamentService) UserTournamentStatus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	id := uint(c.QueryInt("tournament_id"))
	if id == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	tournament, err := s.getTournament(c, id)
	if tournament == nil {
		return err
	}

	var row models.UserTournament
	if err := s.DB.Where("player_id = ? AND tournament_id = ?", userID, tournament.ID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user is not in the tournament"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	return c.JSON(fiber.Map{"status": row.Status})
}

// EliminatePlayer drops a player out of every non-finished tournament. Used
// by the leave endpoint and by the presence registry when a user's last
// connection goes away.
func (s *TournamentService) EliminatePlayer(playerID uint) error {
	return s.DB.
		Model(&models.UserTournament{}).
		Where("player_id = ? AND status = ?", playerID, models.UserTournamentPlaying).
		Where("tournament_id IN (?)", s.DB.
			Model(&models.Tournament{}).
			Select("id").
			Where("status <> ?", models.TournamentStatusFinished)).
		Update("status", models.UserTournamentEliminated).Error
}

// LeaveTournament handles the service-to-service withdrawal call.
func (s *TournamentService) LeaveTournament(c *fiber.Ctx) error {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	if err := s.EliminatePlayer(req.UserID); err != nil {
		log.Printf("DB Error withdrawing user %d from tournaments: %v", req.UserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while updating the tournament"})
	}
	return c.JSON(fiber.Map{"detail": "user withdrawn"})
}
