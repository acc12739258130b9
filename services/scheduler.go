// services/scheduler.go
package services

import (
	"log"
	"time"

	"game-matchmaking-system/models"

	"github.com/go-co-op/gocron/v2"
)

// InviteTTL is how long a game invite stays answerable.
const InviteTTL = 10 * time.Minute

func (s *GameService) StartInviteExpiryScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: expire stale pending invites
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-InviteTTL)
			res := s.DB.Model(&models.GameInvite{}).
				Where("status = ? AND created_at <= ?", models.InviteStatusPending, cutoff).
				Update("status", models.InviteStatusExpired)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("⏰ Expired %d stale game invites", res.RowsAffected)
			}
		}),
	)
}
