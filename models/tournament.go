// models/tournament.go
package models

import "time"

const (
	TournamentStatusWaiting    = "WAITING"
	TournamentStatusInProgress = "IN_PROGRESS"
	TournamentStatusFinished   = "FINISHED"
)

const (
	UserTournamentPlaying    = "PLAYING"
	UserTournamentEliminated = "ELIMINATED"
)

type Tournament struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name"`
	Slug     string `json:"slug" gorm:"index"`
	Status   string `json:"status" gorm:"type:varchar(16);default:'WAITING'"`
	WinnerID *uint  `json:"winner_id,omitempty"`

	// Archived is flipped by the archive worker once the results summary has
	// been uploaded to R2.
	Archived bool `json:"archived" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserTournament links a player to a tournament. A player may belong to at
// most one non-finished tournament at a time; elimination flips Status to
// ELIMINATED instead of deleting the row so brackets keep their history.
type UserTournament struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	PlayerID     uint   `json:"player_id" gorm:"index;not null"`
	TournamentID uint   `json:"tournament_id" gorm:"index;not null"`
	Status       string `json:"status" gorm:"type:varchar(16);default:'PLAYING'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
