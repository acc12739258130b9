// workers/archive_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"game-matchmaking-system/models"
	"game-matchmaking-system/utils"

	"gorm.io/gorm"
)

// tournamentSummary is the JSON document archived per finished tournament.
type tournamentSummary struct {
	ID         uint               `json:"id"`
	Name       string             `json:"name"`
	Slug       string             `json:"slug"`
	WinnerID   *uint              `json:"winner_id"`
	FinishedAt time.Time          `json:"finished_at"`
	Games      []tournamentResult `json:"games"`
}

type tournamentResult struct {
	GameID           uint  `json:"game_id"`
	PlayerLeftID     uint  `json:"player_left_id"`
	PlayerRightID    uint  `json:"player_right_id"`
	PlayerLeftScore  int   `json:"player_left_score"`
	PlayerRightScore int   `json:"player_right_score"`
	WinnerID         *uint `json:"winner_id"`
}

// PollArchives uploads a result summary of every finished tournament to R2
// and marks it archived. Failed uploads stay unarchived and get retried on
// the next tick.
func PollArchives(ctx context.Context, db *gorm.DB, pollInterval time.Duration) {
	log.Println("Starting tournament archive polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tournament archive polling stopped.")
			return
		case <-ticker.C:
			var tournaments []models.Tournament
			err := db.Where("status = ? AND archived = ?", models.TournamentStatusFinished, false).
				Find(&tournaments).Error
			if err != nil {
				log.Printf("❌ Error polling finished tournaments: %v", err)
				continue
			}
			if len(tournaments) == 0 {
				continue
			}

			for _, t := range tournaments {
				if err := archiveTournament(ctx, db, &t); err != nil {
					log.Printf("❌ Failed to archive tournament %d: %v", t.ID, err)
					continue
				}
				log.Printf("🗄️ Archived tournament %d (%s)", t.ID, t.Slug)
			}
		}
	}
}

func archiveTournament(ctx context.Context, db *gorm.DB, t *models.Tournament) error {
	var games []models.Game
	if err := db.Where("tournament_id = ?", t.ID).Find(&games).Error; err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}

	summary := tournamentSummary{
		ID:         t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		WinnerID:   t.WinnerID,
		FinishedAt: t.UpdatedAt,
		Games:      make([]tournamentResult, 0, len(games)),
	}
	for _, g := range games {
		summary.Games = append(summary.Games, tournamentResult{
			GameID:           g.ID,
			PlayerLeftID:     g.PlayerLeftID,
			PlayerRightID:    g.PlayerRightID,
			PlayerLeftScore:  g.PlayerLeftScore,
			PlayerRightScore: g.PlayerRightScore,
			WinnerID:         g.WinnerID,
		})
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	key := fmt.Sprintf("tournaments/%d-%s.json", t.ID, t.Slug)
	if _, err := utils.UploadBytesToR2(ctx, key, payload, "application/json"); err != nil {
		return err
	}

	return db.Model(t).Update("archived", true).Error
}
