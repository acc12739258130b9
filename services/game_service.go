// services/game_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"game-matchmaking-system/models"
	"game-matchmaking-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	ErrPlayerNotFound  = errors.New("player does not exist")
	ErrAlreadyInGame   = errors.New("game already exists")
	ErrSamePlayer      = errors.New("players must be distinct")
	ErrDuplicateInvite = errors.New("invite already sent")
)

type GameService struct {
	DB    *gorm.DB
	Hub   *Hub
	locks *utils.KeyedMutex
}

func NewGameService(db *gorm.DB, hub *Hub) *GameService {
	return &GameService{DB: db, Hub: hub, locks: utils.NewKeyedMutex()}
}

func (s *GameService) resolvePlayer(id uint) (*models.Player, error) {
	var player models.Player
	if err := s.DB.First(&player, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (s *GameService) hasLiveGame(tx *gorm.DB, playerID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Game{}).
		Where("(player_left_id = ? OR player_right_id = ?)", playerID, playerID).
		Where("status IN ?", models.LiveGameStatuses).
		Count(&count).Error
	return count > 0, err
}

// CreateMatch creates a WAITING game between two players after revalidating
// the one-live-game-per-player invariant under per-player locks. Shared by
// the REST handler, the matchmaking queue and challenge acceptance.
func (s *GameService) CreateMatch(leftID, rightID uint, tournamentID *uint) (*models.Game, error) {
	if leftID == rightID {
		return nil, ErrSamePlayer
	}
	if _, err := s.resolvePlayer(leftID); err != nil {
		return nil, err
	}
	if _, err := s.resolvePlayer(rightID); err != nil {
		return nil, err
	}

	s.locks.Lock(leftID, rightID)
	defer s.locks.Unlock(leftID, rightID)

	game := &models.Game{
		PlayerLeftID:  leftID,
		PlayerRightID: rightID,
		TournamentID:  tournamentID,
		Status:        models.GameStatusWaiting,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, id := range []uint{leftID, rightID} {
			live, err := s.hasLiveGame(tx, id)
			if err != nil {
				return err
			}
			if live {
				return ErrAlreadyInGame
			}
		}
		return tx.Create(game).Error
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// CreateGame handles the service-to-service game creation call.
//
// Body: playerLeft, playerRight (both required, distinct player ids).
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	var req struct {
		PlayerLeft  uint `json:"playerLeft"`
		PlayerRight uint `json:"playerRight"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.PlayerLeft == 0 || req.PlayerRight == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "playerLeft and playerRight are required"})
	}

	game, err := s.CreateMatch(req.PlayerLeft, req.PlayerRight, nil)
	switch {
	case errors.Is(err, ErrSamePlayer):
		return c.Status(400).JSON(fiber.Map{"error": "playerLeft and playerRight must be distinct"})
	case errors.Is(err, ErrPlayerNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "player does not exist"})
	case errors.Is(err, ErrAlreadyInGame):
		return c.Status(409).JSON(fiber.Map{"error": "game already exists"})
	case err != nil:
		log.Printf("DB Error creating game %d vs %d: %v", req.PlayerLeft, req.PlayerRight, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	return c.Status(201).JSON(fiber.Map{"game_id": game.ID})
}

type gameView struct {
	ID               uint   `json:"id"`
	PlayerLeft       string `json:"playerLeft"`
	PlayerRight      string `json:"playerRight"`
	PlayerLeftID     uint   `json:"playerLeftId"`
	PlayerRightID    uint   `json:"playerRightId"`
	PlayerLeftScore  int    `json:"playerLeftScore"`
	PlayerRightScore int    `json:"playerRightScore"`
	Winner           *uint  `json:"winner"`
	Tournament       *uint  `json:"tournament"`
	Status           string `json:"status"`
}

// usernames loads an id→username map for the referenced players.
func (s *GameService) usernames(ids []uint) (map[uint]string, error) {
	var players []models.Player
	if err := s.DB.Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]string, len(players))
	for _, p := range players {
		out[p.ID] = p.Username
	}
	return out, nil
}

func (s *GameService) gameViews(games []models.Game) ([]gameView, error) {
	ids := make([]uint, 0, len(games)*2)
	for _, g := range games {
		ids = append(ids, g.PlayerLeftID, g.PlayerRightID)
	}
	names, err := s.usernames(ids)
	if err != nil {
		return nil, err
	}

	views := make([]gameView, 0, len(games))
	for _, g := range games {
		views = append(views, gameView{
			ID:               g.ID,
			PlayerLeft:       names[g.PlayerLeftID],
			PlayerRight:      names[g.PlayerRightID],
			PlayerLeftID:     g.PlayerLeftID,
			PlayerRightID:    g.PlayerRightID,
			PlayerLeftScore:  g.PlayerLeftScore,
			PlayerRightScore: g.PlayerRightScore,
			Winner:           g.WinnerID,
			Tournament:       g.TournamentID,
			Status:           g.Status,
		})
	}
	return views, nil
}

// GetUserGames lists the games of one player, optionally filtered by status
// and opponent username. No matching game is a not-found result, not an
// empty success.
func (s *GameService) GetUserGames(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "user is required"})
	}
	if _, err := s.resolvePlayer(uint(id)); err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user does not exist"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	query := s.DB.Where("player_left_id = ? OR player_right_id = ?", id, id)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if opponent := c.Query("opponent"); opponent != "" {
		var opp models.Player
		if err := s.DB.First(&opp, "username = ?", opponent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "opponent does not exist"})
			}
			return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
		}
		query = query.Where("player_left_id = ? OR player_right_id = ?", opp.ID, opp.ID)
	}

	var games []models.Game
	if err := query.Find(&games).Error; err != nil {
		log.Printf("DB Error fetching games for user %d: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(games) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no games found"})
	}

	views, err := s.gameViews(games)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	return c.JSON(fiber.Map{"detail": views})
}

// Challenge creates a PENDING invite from the authenticated user to an
// opponent and best-effort notifies the opponent's group. Notification
// failure never rolls the invite back.
func (s *GameService) Challenge(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var req struct {
		Opponent uint `json:"opponent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Opponent == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "opponent is required"})
	}
	if req.Opponent == userID {
		return c.Status(400).JSON(fiber.Map{"error": "cannot challenge yourself"})
	}

	sender, err := s.resolvePlayer(userID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "player does not exist"})
	}
	if _, err := s.resolvePlayer(req.Opponent); err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "opponent does not exist"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	s.locks.Lock(userID, req.Opponent)
	defer s.locks.Unlock(userID, req.Opponent)

	invite := &models.GameInvite{
		SenderID:   userID,
		ReceiverID: req.Opponent,
		Status:     models.InviteStatusPending,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		live, err := s.hasLiveGame(tx, userID)
		if err != nil {
			return err
		}
		if live {
			return ErrAlreadyInGame
		}

		var count int64
		if err := tx.Model(&models.GameInvite{}).
			Where("sender_id = ? AND receiver_id = ? AND status = ?", userID, req.Opponent, models.InviteStatusPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateInvite
		}
		return tx.Create(invite).Error
	})
	switch {
	case errors.Is(err, ErrAlreadyInGame):
		return c.Status(409).JSON(fiber.Map{"error": "game already exists"})
	case errors.Is(err, ErrDuplicateInvite):
		return c.Status(409).JSON(fiber.Map{"error": "invite already sent"})
	case err != nil:
		log.Printf("DB Error creating invite %d -> %d: %v", userID, req.Opponent, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while creating the invite"})
	}

	s.Hub.Publish(UserGroup(req.Opponent), Notification{
		NType:   NotificationGameInvite,
		Message: fmt.Sprintf("%s challenged you", sender.Username),
		Sender:  &Sender{ID: sender.ID, Username: sender.Username},
		Payload: fiber.Map{"invite_id": invite.ID},
	})

	return c.Status(201).JSON(fiber.Map{"invite_id": invite.ID})
}

// GetChallenges lists the authenticated user's received invites, optionally
// filtered by status. With ?opponent= it switches to the invites the user
// sent to that opponent.
func (s *GameService) GetChallenges(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	query := s.DB.Where("receiver_id = ?", userID)
	if opponent := c.Query("opponent"); opponent != "" {
		var opp models.Player
		if err := s.DB.First(&opp, "username = ?", opponent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "opponent does not exist"})
			}
			return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
		}
		query = s.DB.Where("sender_id = ? AND receiver_id = ?", userID, opp.ID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var invites []models.GameInvite
	if err := query.Find(&invites).Error; err != nil {
		log.Printf("DB Error fetching invites for user %d: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if len(invites) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no invites found"})
	}

	ids := make([]uint, 0, len(invites)*2)
	for _, inv := range invites {
		ids = append(ids, inv.SenderID, inv.ReceiverID)
	}
	names, err := s.usernames(ids)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	type inviteView struct {
		ID       uint   `json:"id"`
		Sender   string `json:"sender"`
		Receiver string `json:"receiver"`
		Status   string `json:"status"`
	}
	views := make([]inviteView, 0, len(invites))
	for _, inv := range invites {
		views = append(views, inviteView{
			ID:       inv.ID,
			Sender:   names[inv.SenderID],
			Receiver: names[inv.ReceiverID],
			Status:   inv.Status,
		})
	}
	return c.JSON(fiber.Map{"detail": views})
}

// AcceptChallenge turns a PENDING invite into a game and links the game back
// to the invite.
func (s *GameService) AcceptChallenge(c *fiber.Ctx) error {
	var req struct {
		InviteID uint `json:"invite_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.InviteID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invite_id is required"})
	}

	var invite models.GameInvite
	if err := s.DB.First(&invite, "id = ?", req.InviteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "invite does not exist"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if invite.Status != models.InviteStatusPending {
		return c.Status(400).JSON(fiber.Map{"error": "invite is not pending"})
	}

	s.locks.Lock(invite.SenderID, invite.ReceiverID)
	defer s.locks.Unlock(invite.SenderID, invite.ReceiverID)

	game := &models.Game{
		PlayerLeftID:  invite.SenderID,
		PlayerRightID: invite.ReceiverID,
		Status:        models.GameStatusWaiting,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, id := range []uint{invite.SenderID, invite.ReceiverID} {
			live, err := s.hasLiveGame(tx, id)
			if err != nil {
				return err
			}
			if live {
				return ErrAlreadyInGame
			}
		}
		if err := tx.Create(game).Error; err != nil {
			return err
		}
		return tx.Model(&invite).Updates(map[string]interface{}{
			"status":  models.InviteStatusAccepted,
			"game_id": game.ID,
		}).Error
	})
	switch {
	case errors.Is(err, ErrAlreadyInGame):
		return c.Status(409).JSON(fiber.Map{"error": "game already exists"})
	case err != nil:
		log.Printf("DB Error accepting invite %d: %v", invite.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	return c.Status(201).JSON(fiber.Map{"game_id": game.ID})
}

// DeclineChallenge marks a PENDING invite DECLINED. Terminal; no game is
// created.
func (s *GameService) DeclineChallenge(c *fiber.Ctx) error {
	var req struct {
		InviteID uint `json:"invite_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.InviteID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invite_id is required"})
	}

	var invite models.GameInvite
	if err := s.DB.First(&invite, "id = ?", req.InviteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "invite does not exist"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if invite.Status != models.InviteStatusPending {
		return c.Status(400).JSON(fiber.Map{"error": "invite is not pending"})
	}

	if err := s.DB.Model(&invite).Update("status", models.InviteStatusDeclined).Error; err != nil {
		log.Printf("DB Error declining invite %d: %v", invite.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	return c.JSON(fiber.Map{"detail": "invite declined"})
}

// UpdateGame applies score/status mutations to a game. A FINISHED game is
// terminal; the winner, once set, must be one of the two seats.
func (s *GameService) UpdateGame(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "game id is required"})
	}

	var req struct {
		PlayerLeftScore  *int    `json:"player_left_score"`
		PlayerRightScore *int    `json:"player_right_score"`
		Status           *string `json:"status"`
		WinnerID         *uint   `json:"winner_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "game does not exist"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}
	if game.Status == models.GameStatusFinished {
		return c.Status(409).JSON(fiber.Map{"error": "game already finished"})
	}

	updates := map[string]interface{}{}
	if req.PlayerLeftScore != nil {
		updates["player_left_score"] = *req.PlayerLeftScore
	}
	if req.PlayerRightScore != nil {
		updates["player_right_score"] = *req.PlayerRightScore
	}
	if req.Status != nil {
		switch *req.Status {
		case models.GameStatusWaiting, models.GameStatusInProgress, models.GameStatusPaused, models.GameStatusFinished:
			updates["status"] = *req.Status
		default:
			return c.Status(400).JSON(fiber.Map{"error": "invalid status"})
		}
	}
	if req.WinnerID != nil {
		if !game.HasPlayer(*req.WinnerID) {
			return c.Status(400).JSON(fiber.Map{"error": "winner must be one of the players"})
		}
		updates["winner_id"] = *req.WinnerID
	}
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "nothing to update"})
	}

	if err := s.DB.Model(&game).Updates(updates).Error; err != nil {
		log.Printf("DB Error updating game %d: %v", game.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "error while querying the database"})
	}

	status := game.Status
	if req.Status != nil {
		status = *req.Status
	}
	winnerID := game.WinnerID
	if req.WinnerID != nil {
		winnerID = req.WinnerID
	}

	// Finishing a tournament game knocks the loser out of the bracket.
	if game.TournamentID != nil && status == models.GameStatusFinished && winnerID != nil {
		loserID := game.PlayerLeftID
		if loserID == *winnerID {
			loserID = game.PlayerRightID
		}
		err := s.DB.Model(&models.UserTournament{}).
			Where("player_id = ? AND tournament_id = ? AND status = ?",
				loserID, *game.TournamentID, models.UserTournamentPlaying).
			Update("status", models.UserTournamentEliminated).Error
		if err != nil {
			log.Printf("DB Error eliminating player %d from tournament %d: %v", loserID, *game.TournamentID, err)
		}
	}

	return c.JSON(game)
}

// SearchPlayers searches the local player mirror by username.
func (s *GameService) SearchPlayers(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.Player{}).Limit(limit)
	if q := c.Query("q"); q != "" {
		db = db.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(q))+"%")
	}

	var players []models.Player
	if err := db.Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed"})
	}

	type playerSummary struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		IsOnline bool   `json:"is_online"`
	}
	res := make([]playerSummary, len(players))
	for i, p := range players {
		res[i] = playerSummary{ID: p.ID, Username: p.Username, IsOnline: p.IsOnline}
	}
	return c.JSON(res)
}
