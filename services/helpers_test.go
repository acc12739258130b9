// services/helpers_test.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"game-matchmaking-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named shared-cache DSN so every pooled connection sees the same
	// in-memory database, isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
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
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPlayer(t *testing.T, db *gorm.DB, id uint, username string) {
	t.Helper()
	if err := db.Create(&models.Player{ID: id, Username: username}).Error; err != nil {
		t.Fatalf("seed player %d: %v", id, err)
	}
}

// fakeConn records frames written by a Client's writer goroutine.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// waitFrames polls until the connection saw n frames or the deadline passes.
// Delivery goes through the client's queue and writer goroutine, so tests
// cannot assert immediately after Publish.
func waitFrames(t *testing.T, conn *fakeConn, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn.frameCount() >= n {
			conn.mu.Lock()
			defer conn.mu.Unlock()
			return conn.frames
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, got %d", n, conn.frameCount())
	return nil
}

func decodeNotification(t *testing.T, frame []byte) Notification {
	t.Helper()
	var n Notification
	if err := json.Unmarshal(frame, &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return n
}
