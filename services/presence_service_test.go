// services/presence_service_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"game-matchmaking-system/models"
)

type fakeProfiles struct {
	mu       sync.Mutex
	friends  []Friend
	statuses []bool
}

func (f *fakeProfiles) FriendsOf(userID uint) ([]Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends, nil
}

func (f *fakeProfiles) PushStatus(userID uint, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, online)
	return nil
}

func (f *fakeProfiles) pushed() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.statuses...)
}

type fakeWithdrawals struct {
	mu          sync.Mutex
	queueLeaves []uint
	eliminated  []uint
}

func (f *fakeWithdrawals) LeaveQueue(playerID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueLeaves = append(f.queueLeaves, playerID)
	return true
}

func (f *fakeWithdrawals) EliminatePlayer(playerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eliminated = append(f.eliminated, playerID)
	return nil
}

func newPresenceFixture(t *testing.T) (*PresenceService, *fakeProfiles, *fakeWithdrawals, *models.Player) {
	t.Helper()
	db := newTestDB(t)
	seedPlayer(t, db, 1, "alice")
	seedPlayer(t, db, 2, "bob")

	profiles := &fakeProfiles{friends: []Friend{{ID: 2, Username: "bob"}}}
	withdrawals := &fakeWithdrawals{}
	svc := NewPresenceService(db, NewHub(), profiles, withdrawals, withdrawals)

	var player models.Player
	if err := db.First(&player, "id = ?", 1).Error; err != nil {
		t.Fatalf("load player: %v", err)
	}
	return svc, profiles, withdrawals, &player
}

func TestConnectMarksOnlineAndNotifies(t *testing.T) {
	svc, profiles, _, player := newPresenceFixture(t)

	friendConn := &fakeConn{}
	friend := NewClient(friendConn)
	defer friend.Close()
	svc.Hub.Subscribe(UserGroup(2), friend)

	broadcastConn := &fakeConn{}
	watcher := NewClient(broadcastConn)
	defer watcher.Close()
	svc.Hub.Subscribe(BroadcastGroup, watcher)

	client := NewClient(&fakeConn{})
	if err := svc.HandleConnect(player, client); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var reloaded models.Player
	if err := svc.DB.First(&reloaded, "id = ?", player.ID).Error; err != nil {
		t.Fatalf("reload player: %v", err)
	}
	if !reloaded.IsOnline {
		t.Fatal("expected player marked online")
	}

	frames := waitFrames(t, friendConn, 1)
	if n := decodeNotification(t, frames[0]); n.NType != NotificationUserOnlineFriend {
		t.Fatalf("expected friend notification %d, got %d", NotificationUserOnlineFriend, n.NType)
	}
	frames = waitFrames(t, broadcastConn, 1)
	if n := decodeNotification(t, frames[0]); n.NType != NotificationUserOnline {
		t.Fatalf("expected broadcast %d, got %d", NotificationUserOnline, n.NType)
	}
	if pushed := profiles.pushed(); len(pushed) != 1 || !pushed[0] {
		t.Fatalf("expected one online push, got %v", pushed)
	}

	// The user's own group now has the client.
	if svc.Hub.GroupSize(UserGroup(player.ID)) != 1 {
		t.Fatal("expected client subscribed to own group")
	}
}

func TestSecondConnectionDoesNotRenotify(t *testing.T) {
	svc, profiles, _, player := newPresenceFixture(t)

	first := NewClient(&fakeConn{})
	second := NewClient(&fakeConn{})
	if err := svc.HandleConnect(player, first); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := svc.HandleConnect(player, second); err != nil {
		t.Fatalf("second connect: %v", err)
	}

	if pushed := profiles.pushed(); len(pushed) != 1 {
		t.Fatalf("expected a single status push for two connections, got %v", pushed)
	}

	var pp models.PlayerPresence
	if err := svc.DB.First(&pp, "player_id = ?", player.ID).Error; err != nil {
		t.Fatalf("load presence: %v", err)
	}
	if pp.Connections != 2 {
		t.Fatalf("expected 2 connections, got %d", pp.Connections)
	}
}

func TestLastDisconnectTriggersOfflineFlowOnce(t *testing.T) {
	svc, profiles, withdrawals, player := newPresenceFixture(t)

	first := NewClient(&fakeConn{})
	second := NewClient(&fakeConn{})
	if err := svc.HandleConnect(player, first); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := svc.HandleConnect(player, second); err != nil {
		t.Fatalf("connect: %v", err)
	}

	broadcastConn := &fakeConn{}
	watcher := NewClient(broadcastConn)
	defer watcher.Close()
	svc.Hub.Subscribe(BroadcastGroup, watcher)

	// Dropping one of two connections changes nothing.
	svc.HandleDisconnect(player, first)
	var reloaded models.Player
	if err := svc.DB.First(&reloaded, "id = ?", player.ID).Error; err != nil {
		t.Fatalf("reload player: %v", err)
	}
	if !reloaded.IsOnline {
		t.Fatal("player must stay online with one connection left")
	}
	if len(withdrawals.eliminated) != 0 || len(withdrawals.queueLeaves) != 0 {
		t.Fatal("no withdrawals expected while still connected")
	}

	// The last connection going away runs the offline flow.
	svc.HandleDisconnect(player, second)
	if err := svc.DB.First(&reloaded, "id = ?", player.ID).Error; err != nil {
		t.Fatalf("reload player: %v", err)
	}
	if reloaded.IsOnline {
		t.Fatal("expected player offline")
	}

	frames := waitFrames(t, broadcastConn, 1)
	if n := decodeNotification(t, frames[0]); n.NType != NotificationUserOffline {
		t.Fatalf("expected USER_OFFLINE broadcast, got %d", n.NType)
	}
	if got := withdrawals.queueLeaves; len(got) != 1 || got[0] != player.ID {
		t.Fatalf("expected queue withdrawal for player, got %v", got)
	}
	if got := withdrawals.eliminated; len(got) != 1 || got[0] != player.ID {
		t.Fatalf("expected tournament withdrawal for player, got %v", got)
	}
	if pushed := profiles.pushed(); len(pushed) != 2 || pushed[1] {
		t.Fatalf("expected online then offline push, got %v", pushed)
	}

	// A stray extra disconnect is a no-op.
	svc.HandleDisconnect(player, second)
	time.Sleep(20 * time.Millisecond)
	if broadcastConn.frameCount() != 1 {
		t.Fatalf("expected exactly one offline broadcast, got %d", broadcastConn.frameCount())
	}
	if pushed := profiles.pushed(); len(pushed) != 2 {
		t.Fatalf("expected no further pushes, got %v", pushed)
	}

	var pp models.PlayerPresence
	if err := svc.DB.First(&pp, "player_id = ?", player.ID).Error; err != nil {
		t.Fatalf("load presence: %v", err)
	}
	if pp.Connections != 0 {
		t.Fatalf("expected counter clamped at 0, got %d", pp.Connections)
	}
}

func TestLobbySizeTracksAllConnections(t *testing.T) {
	svc, _, _, player := newPresenceFixture(t)
	db := svc.DB

	var other models.Player
	if err := db.First(&other, "id = ?", 2).Error; err != nil {
		t.Fatalf("load player 2: %v", err)
	}

	a := NewClient(&fakeConn{})
	b := NewClient(&fakeConn{})
	if err := svc.HandleConnect(player, a); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := svc.HandleConnect(&other, b); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if size, err := svc.LobbySize(); err != nil || size != 2 {
		t.Fatalf("expected lobby size 2, got %d (%v)", size, err)
	}

	svc.HandleDisconnect(player, a)
	if size, err := svc.LobbySize(); err != nil || size != 1 {
		t.Fatalf("expected lobby size 1, got %d (%v)", size, err)
	}
}
