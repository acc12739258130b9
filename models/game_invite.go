// models/game_invite.go
package models

import "time"

const (
	InviteStatusPending  = "PENDING"
	InviteStatusAccepted = "ACCEPTED"
	InviteStatusDeclined = "DECLINED"
	InviteStatusExpired  = "EXPIRED" // set by the invite expiry scheduler
)

// GameInvite is a challenge from one player to another. At most one PENDING
// invite may exist per ordered (sender, receiver) pair; accepting it creates
// the game and links it back here.
type GameInvite struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	SenderID   uint   `json:"sender_id" gorm:"index;not null"`
	ReceiverID uint   `json:"receiver_id" gorm:"index;not null"`
	GameID     *uint  `json:"game_id,omitempty"`
	Status     string `json:"status" gorm:"type:varchar(16);default:'PENDING'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
