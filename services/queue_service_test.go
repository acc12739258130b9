// services/queue_service_test.go
package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"game-matchmaking-system/models"

	"github.com/gofiber/fiber/v2"
)

// newQueueApp reads the acting user from a test header so one app can
// exercise joins from several users.
func newQueueApp(queue *QueueService) *fiber.App {
	app := fiber.New()
	app.Post("/queue/join", func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64)
		if err != nil {
			return c.SendStatus(500)
		}
		c.Locals("user_id", uint(id))
		return queue.Join(c)
	})
	app.Post("/queue/leave", queue.LeaveInternal)
	return app
}

func joinAs(t *testing.T, app *fiber.App, userID uint) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/queue/join", nil)
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("join as %d: %v", userID, err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode join response: %v", err)
	}
	return resp.StatusCode, out
}

func TestQueuePairsFIFO(t *testing.T) {
	db := newTestDB(t)
	hub := NewHub()
	games := NewGameService(db, hub)
	queue := NewQueueService(games)
	seedPlayer(t, db, 1, "alice")
	seedPlayer(t, db, 2, "bob")

	leftConn, rightConn := &fakeConn{}, &fakeConn{}
	left, right := NewClient(leftConn), NewClient(rightConn)
	defer left.Close()
	defer right.Close()
	hub.Subscribe(UserGroup(1), left)
	hub.Subscribe(UserGroup(2), right)

	app := newQueueApp(queue)

	status, body := joinAs(t, app, 1)
	if status != 200 {
		t.Fatalf("first join: expected 200 waiting, got %d (%v)", status, body)
	}
	if queue.Size() != 1 {
		t.Fatalf("expected 1 waiting, got %d", queue.Size())
	}

	status, body = joinAs(t, app, 2)
	if status != 201 {
		t.Fatalf("second join: expected 201 matched, got %d (%v)", status, body)
	}
	gameID := uint(body["game_id"].(float64))
	if queue.Size() != 0 {
		t.Fatalf("expected empty queue after match, got %d", queue.Size())
	}

	var game models.Game
	if err := db.First(&game, "id = ?", gameID).Error; err != nil {
		t.Fatalf("load game: %v", err)
	}
	if game.PlayerLeftID != 1 || game.PlayerRightID != 2 {
		t.Fatalf("expected pair (1, 2), got (%d, %d)", game.PlayerLeftID, game.PlayerRightID)
	}

	// Both players hear about the match.
	for _, conn := range []*fakeConn{leftConn, rightConn} {
		frames := waitFrames(t, conn, 1)
		n := decodeNotification(t, frames[0])
		if n.NType != NotificationGameFound {
			t.Fatalf("expected GAME_FOUND, got %d", n.NType)
		}
	}
}

func TestQueueRejectsDoubleJoin(t *testing.T) {
	db := newTestDB(t)
	games := NewGameService(db, NewHub())
	queue := NewQueueService(games)
	seedPlayer(t, db, 1, "alice")

	app := newQueueApp(queue)

	if status, _ := joinAs(t, app, 1); status != 200 {
		t.Fatal("first join should wait")
	}
	if status, _ := joinAs(t, app, 1); status != 409 {
		t.Fatal("second join should conflict")
	}
}

func TestQueueLeave(t *testing.T) {
	db := newTestDB(t)
	games := NewGameService(db, NewHub())
	queue := NewQueueService(games)
	seedPlayer(t, db, 1, "alice")
	seedPlayer(t, db, 2, "bob")

	app := newQueueApp(queue)

	joinAs(t, app, 1)
	if status, _ := doJSON(t, app, http.MethodPost, "/queue/leave", fiber.Map{"user_id": 1}); status != 200 {
		t.Fatal("leave should succeed")
	}
	if queue.Size() != 0 {
		t.Fatalf("expected empty queue, got %d", queue.Size())
	}
	if queue.LeaveQueue(1) {
		t.Fatal("leaving twice should report not found")
	}

	// Player 2 joining an empty queue waits instead of matching the
	// departed player.
	if status, _ := joinAs(t, app, 2); status != 200 {
		t.Fatal("join after leave should wait")
	}
}

func TestQueueBusyPlayerDoesNotConsumeWaiter(t *testing.T) {
	db := newTestDB(t)
	games := NewGameService(db, NewHub())
	queue := NewQueueService(games)
	seedPlayer(t, db, 1, "alice")
	seedPlayer(t, db, 2, "bob")
	seedPlayer(t, db, 3, "carol")

	// Player 2 is already in a live game.
	if err := db.Create(&models.Game{
		PlayerLeftID: 2, PlayerRightID: 3, Status: models.GameStatusInProgress,
	}).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}

	app := newQueueApp(queue)

	joinAs(t, app, 1)
	if status, _ := joinAs(t, app, 2); status != 409 {
		t.Fatal("busy player join should conflict")
	}
	// Player 1 keeps their spot at the head.
	if queue.Size() != 1 {
		t.Fatalf("expected waiter back in queue, got size %d", queue.Size())
	}
}
