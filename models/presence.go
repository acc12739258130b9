// models/presence.go
package models

import "time"

// GlobalRoomName is the single PresenceRoom row tracking connections across
// all users.
const GlobalRoomName = "global"

// PresenceRoom counts live notification connections. The row is created on
// the first connection and clamped at zero; it is mutated only inside a
// row-locked transaction.
type PresenceRoom struct {
	Name        string `json:"name" gorm:"primaryKey"`
	Connections int    `json:"connections" gorm:"default:0"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerPresence counts live connections per player. The offline transition
// for a player fires only when this counter reaches zero, so two tabs of the
// same user (or two distinct users) never race each other offline.
type PlayerPresence struct {
	PlayerID    uint `json:"player_id" gorm:"primaryKey"`
	Connections int  `json:"connections" gorm:"default:0"`

	UpdatedAt time.Time `json:"updated_at"`
}
