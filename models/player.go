// models/player.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is a local snapshot of user data needed for matchmaking.
// Owned and managed solely by the matchmaking service; populated via the
// player sync worker from the profile service. The ID is the profile
// service's numeric user id — bracket seeding orders by it, so it is never
// remapped locally.
type Player struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"index;not null"`
	IsOnline bool   `json:"is_online" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
