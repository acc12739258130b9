// services/hub.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// NotificationType mirrors the wire enum shared with the front end. Values
// below 7 belong to the friends/profile service and are never emitted here.
type NotificationType int

const (
	NotificationUserOnline        NotificationType = 7
	NotificationUserOffline       NotificationType = 8
	NotificationUserOnlineFriend  NotificationType = 9
	NotificationUserOfflineFriend NotificationType = 10
	NotificationGameFound         NotificationType = 11
	NotificationGameInvite        NotificationType = 12
	NotificationTournamentUpdate  NotificationType = 13
)

// Sender identifies the user a notification is about.
type Sender struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type Notification struct {
	NType   NotificationType `json:"ntype"`
	Message string           `json:"message,omitempty"`
	Sender  *Sender          `json:"sender,omitempty"`
	Payload interface{}      `json:"payload,omitempty"`
}

const BroadcastGroup = "broadcast"

// UserGroup is the private group key for one user's connections.
func UserGroup(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// clientQueueSize bounds the per-subscriber outbound queue. A publisher never
// blocks on a slow subscriber; overflow drops the message (drop-new).
const clientQueueSize = 32

type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one notification connection registered with the hub. All writes
// to the underlying socket happen on its writer goroutine.
type Client struct {
	ID   string
	conn wsConn
	send chan []byte
	once sync.Once
}

func NewClient(conn wsConn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}
	go c.writePump()
	return c
}

func (c *Client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[HUB] write error on client %s: %v", c.ID, err)
			c.conn.Close()
			return
		}
	}
	c.conn.Close()
}

// Close stops the writer goroutine and closes the socket. Safe to call more
// than once; in-flight publishes targeting the client are dropped.
func (c *Client) Close() {
	c.once.Do(func() { close(c.send) })
}

// Hub maintains subscription groups and delivers published notifications to
// every member of a group. Delivery is fire-and-forget: failures are logged,
// never raised back to the publisher.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Client]bool)}
}

func (h *Hub) Subscribe(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][c] = true
	log.Printf("[HUB] client %s joined %s (members: %d)", c.ID, group, len(h.groups[group]))
}

func (h *Hub) Unsubscribe(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// UnsubscribeAll removes the client from every group it belongs to.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group, members := range h.groups {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
}

// Publish delivers the notification to every current subscriber of the
// group, in publish order per subscriber. A subscriber whose queue is full
// loses the message.
func (h *Hub) Publish(group string, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("[HUB] marshal error for group %s: %v", group, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.groups[group] {
		select {
		case c.send <- data:
		default:
			log.Printf("[HUB] queue full, dropping ntype=%d for client %s on %s", n.NType, c.ID, group)
		}
	}
}

// GroupSize reports the current member count of a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
