// services/queue_service.go
package services

import (
	"errors"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// QueueService holds the in-memory matchmaking queue. FIFO: the joiner is
// paired with the player waiting longest. The queue does not survive a
// restart, waiting players just re-join.
type QueueService struct {
	Games *GameService

	mu      sync.Mutex
	waiting []uint
}

func NewQueueService(games *GameService) *QueueService {
	return &QueueService{Games: games}
}

// Join enqueues the authenticated user or pairs them with the head of the
// queue. Pairing creates the game and notifies both players over the hub.
func (s *QueueService) Join(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	s.mu.Lock()
	for _, id := range s.waiting {
		if id == userID {
			s.mu.Unlock()
			return c.Status(409).JSON(fiber.Map{"error": "already in queue"})
		}
	}
	if len(s.waiting) == 0 {
		s.waiting = append(s.waiting, userID)
		s.mu.Unlock()
		return c.JSON(fiber.Map{"detail": "waiting for an opponent"})
	}
	opponentID := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.mu.Unlock()

	game, err := s.Games.CreateMatch(opponentID, userID, nil)
	if err != nil {
		// The popped opponent goes back to the head so they keep their spot.
		if errors.Is(err, ErrAlreadyInGame) || errors.Is(err, ErrPlayerNotFound) {
			s.requeueFront(opponentID)
		}
		switch {
		case errors.Is(err, ErrPlayerNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "player does not exist"})
		case errors.Is(err, ErrAlreadyInGame):
			return c.Status(409).JSON(fiber.Map{"error": "game already exists"})
		default:
			log.Printf("DB Error pairing queue players %d and %d: %v", opponentID, userID, err)
			return c.Status(500).JSON(fiber.Map{"error": "Error while creating the game"})
		}
	}

	for _, id := range []uint{opponentID, userID} {
		s.Games.Hub.Publish(UserGroup(id), Notification{
			NType:   NotificationGameFound,
			Message: "opponent found",
			Payload: fiber.Map{"game_id": game.ID},
		})
	}
	log.Printf("⚔️ Queue matched players %d and %d into game %d", opponentID, userID, game.ID)

	return c.Status(201).JSON(fiber.Map{"game_id": game.ID})
}

func (s *QueueService) requeueFront(playerID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.waiting {
		if id == playerID {
			return
		}
	}
	s.waiting = append([]uint{playerID}, s.waiting...)
}

// LeaveQueue removes a player from the queue if present. Safe to call for
// players who never joined.
func (s *QueueService) LeaveQueue(playerID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.waiting {
		if id == playerID {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Leave handles the authenticated user's own leave request.
func (s *QueueService) Leave(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	s.LeaveQueue(userID)
	return c.JSON(fiber.Map{"detail": "left the queue"})
}

// LeaveInternal handles the service-to-service removal call.
func (s *QueueService) LeaveInternal(c *fiber.Ctx) error {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}
	s.LeaveQueue(req.UserID)
	return c.JSON(fiber.Map{"detail": "left the queue"})
}

// Size reports how many players are waiting. Used by tests and logs.
func (s *QueueService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}
