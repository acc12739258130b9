// services/presence_service.go
package services

import (
	"fmt"
	"log"

	"game-matchmaking-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queueWithdrawer and tournamentWithdrawer let the presence registry kick a
// fully disconnected player out of matchmaking without depending on the
// whole queue and tournament services.
type queueWithdrawer interface {
	LeaveQueue(playerID uint) bool
}

type tournamentWithdrawer interface {
	EliminatePlayer(playerID uint) error
}

// PresenceService tracks websocket connections per player. A player may hold
// several connections at once (tabs, devices); only the transition between
// zero and one connection changes their visible online status.
type PresenceService struct {
	DB          *gorm.DB
	Hub         *Hub
	Profiles    ProfileDirectory
	Queue       queueWithdrawer
	Tournaments tournamentWithdrawer
}

func NewPresenceService(db *gorm.DB, hub *Hub, profiles ProfileDirectory, queue queueWithdrawer, tournaments tournamentWithdrawer) *PresenceService {
	return &PresenceService{DB: db, Hub: hub, Profiles: profiles, Queue: queue, Tournaments: tournaments}
}

// register bumps the per-player and lobby counters inside one transaction and
// reports whether this connection took the player from offline to online.
func (s *PresenceService) register(player *models.Player) (bool, error) {
	cameOnline := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var pp models.PlayerPresence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.PlayerPresence{PlayerID: player.ID}).
			FirstOrCreate(&pp).Error; err != nil {
			return err
		}
		pp.Connections++
		cameOnline = pp.Connections == 1
		if err := tx.Save(&pp).Error; err != nil {
			return err
		}

		var room models.PresenceRoom
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.PresenceRoom{Name: models.GlobalRoomName}).
			FirstOrCreate(&room).Error; err != nil {
			return err
		}
		room.Connections++
		if err := tx.Save(&room).Error; err != nil {
			return err
		}

		if cameOnline {
			return tx.Model(&models.Player{}).Where("id = ?", player.ID).
				Update("is_online", true).Error
		}
		return nil
	})
	return cameOnline, err
}

// unregister decrements the counters, clamping at zero, and reports whether
// the player's last connection just went away.
func (s *PresenceService) unregister(playerID uint) (bool, error) {
	wentOffline := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var pp models.PlayerPresence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.PlayerPresence{PlayerID: playerID}).
			FirstOrCreate(&pp).Error; err != nil {
			return err
		}
		if pp.Connections > 0 {
			pp.Connections--
			wentOffline = pp.Connections == 0
			if err := tx.Save(&pp).Error; err != nil {
				return err
			}
		}

		var room models.PresenceRoom
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.PresenceRoom{Name: models.GlobalRoomName}).
			FirstOrCreate(&room).Error; err != nil {
			return err
		}
		if room.Connections > 0 {
			room.Connections--
			if err := tx.Save(&room).Error; err != nil {
				return err
			}
		}

		if wentOffline {
			return tx.Model(&models.Player{}).Where("id = ?", playerID).
				Update("is_online", false).Error
		}
		return nil
	})
	return wentOffline, err
}

func (s *PresenceService) notifyFriends(player *models.Player, ntype NotificationType, verb string) {
	friends, err := s.Profiles.FriendsOf(player.ID)
	if err != nil {
		log.Printf("⚠️ Could not fetch friends of user %d: %v", player.ID, err)
		return
	}
	sender := &Sender{ID: player.ID, Username: player.Username}
	for _, f := range friends {
		s.Hub.Publish(UserGroup(f.ID), Notification{
			NType:   ntype,
			Message: fmt.Sprintf("%s is %s", player.Username, verb),
			Sender:  sender,
		})
	}
}

// HandleConnect wires a new websocket client into the hub and runs the
// online bookkeeping. Profile-service and friend notifications are best
// effort, the connection stays up even when they fail.
func (s *PresenceService) HandleConnect(player *models.Player, client *Client) error {
	s.Hub.Subscribe(BroadcastGroup, client)
	s.Hub.Subscribe(UserGroup(player.ID), client)

	cameOnline, err := s.register(player)
	if err != nil {
		s.Hub.UnsubscribeAll(client)
		return err
	}
	if !cameOnline {
		return nil
	}

	log.Printf("🟢 User %d (%s) came online", player.ID, player.Username)
	if err := s.Profiles.PushStatus(player.ID, true); err != nil {
		log.Printf("⚠️ Could not push online status for user %d: %v", player.ID, err)
	}
	s.notifyFriends(player, NotificationUserOnlineFriend, "online")
	s.Hub.Publish(BroadcastGroup, Notification{
		NType:   NotificationUserOnline,
		Message: fmt.Sprintf("%s is online", player.Username),
		Sender:  &Sender{ID: player.ID, Username: player.Username},
	})
	return nil
}

// HandleDisconnect tears a client down. Only the player's last connection
// triggers the offline fan-out and pulls them out of matchmaking; calling it
// again for an already-offline player is a no-op.
func (s *PresenceService) HandleDisconnect(player *models.Player, client *Client) {
	s.Hub.UnsubscribeAll(client)
	client.Close()

	wentOffline, err := s.unregister(player.ID)
	if err != nil {
		log.Printf("DB Error unregistering connection for user %d: %v", player.ID, err)
		return
	}
	if !wentOffline {
		return
	}

	log.Printf("⚫ User %d (%s) went offline", player.ID, player.Username)
	if err := s.Profiles.PushStatus(player.ID, false); err != nil {
		log.Printf("⚠️ Could not push offline status for user %d: %v", player.ID, err)
	}
	s.notifyFriends(player, NotificationUserOfflineFriend, "offline")
	s.Hub.Publish(BroadcastGroup, Notification{
		NType:   NotificationUserOffline,
		Message: fmt.Sprintf("%s is offline", player.Username),
		Sender:  &Sender{ID: player.ID, Username: player.Username},
	})

	if s.Queue != nil {
		s.Queue.LeaveQueue(player.ID)
	}
	if s.Tournaments != nil {
		if err := s.Tournaments.EliminatePlayer(player.ID); err != nil {
			log.Printf("DB Error withdrawing user %d from tournaments: %v", player.ID, err)
		}
	}
}

// LobbySize reports the number of open connections across all players.
func (s *PresenceService) LobbySize() (int, error) {
	var room models.PresenceRoom
	err := s.DB.Where(models.PresenceRoom{Name: models.GlobalRoomName}).
		FirstOrCreate(&room).Error
	return room.Connections, err
}
