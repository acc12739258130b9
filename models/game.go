// models/game.go
package models

import "time"

const (
	GameStatusWaiting    = "WAITING"
	GameStatusInProgress = "IN_PROGRESS"
	GameStatusPaused     = "PAUSED"
	GameStatusFinished   = "FINISHED"
)

// LiveGameStatuses are the statuses of a game that is not over yet.
// A player may hold at most one game in any of these statuses.
var LiveGameStatuses = []string{GameStatusWaiting, GameStatusInProgress, GameStatusPaused}

type Game struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	PlayerLeftID     uint   `json:"player_left_id" gorm:"index;not null"`
	PlayerRightID    uint   `json:"player_right_id" gorm:"index;not null"`
	PlayerLeftScore  int    `json:"player_left_score" gorm:"default:0"`
	PlayerRightScore int    `json:"player_right_score" gorm:"default:0"`
	WinnerID         *uint  `json:"winner_id,omitempty"`
	TournamentID     *uint  `json:"tournament_id,omitempty" gorm:"index"`
	Status           string `json:"status" gorm:"type:varchar(16);default:'WAITING'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLive reports whether the game still blocks its players from entering
// another game.
func (g *Game) IsLive() bool {
	return g.Status == GameStatusWaiting || g.Status == GameStatusInProgress || g.Status == GameStatusPaused
}

// HasPlayer reports whether id is one of the two seats of the game.
func (g *Game) HasPlayer(id uint) bool {
	return g.PlayerLeftID == id || g.PlayerRightID == id
}
