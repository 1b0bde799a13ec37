package jobs

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// LiveSummarySweep refreshes every future event's live messages. Safety
// net for refreshes dropped from the queue under load.
func LiveSummarySweep(database *sql.DB, s *livemsg.Sync, now func() eventid.ID) Job {
	return func(ctx context.Context) error {
		events, err := db.ListFutureEvents(ctx, database, now(), models.TierTeamManager)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if _, _, err := s.RefreshAll(ctx, ev.ID); err != nil {
				return err
			}
		}
		return nil
	}
}
