// Package livemsg keeps previously sent "live" attendance summaries up
// to date: each summary message is recorded, and any attendance change
// re-renders the roster and edits every recorded message in place.
package livemsg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

type Sync struct {
	database *sql.DB
	m        tg.Messenger
	agg      *attendance.Aggregator
	loc      *time.Location
	log      *zap.SugaredLogger
}

func New(database *sql.DB, m tg.Messenger, loc *time.Location, log *zap.SugaredLogger) *Sync {
	return &Sync{
		database: database,
		m:        m,
		agg:      attendance.NewAggregator(database),
		loc:      loc,
		log:      log,
	}
}

// PushInitial renders the current summary for the event, sends it to
// the chat and records the message so later refreshes can edit it.
func (s *Sync) PushInitial(ctx context.Context, eventID eventid.ID, chatID int64) (tg.MessageRef, error) {
	text, err := s.render(ctx, eventID)
	if err != nil {
		return tg.MessageRef{}, err
	}
	ref, err := s.m.Send(chatID, text, nil)
	if err != nil {
		return tg.MessageRef{}, err
	}
	err = db.UpsertLiveMessage(ctx, s.database, models.LiveMessage{
		EventID:   eventID,
		ChatID:    chatID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		return tg.MessageRef{}, err
	}
	return ref, nil
}

// RefreshAll re-renders the summary once and edits every recorded
// message for the event. Deleted messages and unreachable chats are
// silent failures: counted, skipped, never raised.
func (s *Sync) RefreshAll(ctx context.Context, eventID eventid.ID) (success, failed int, err error) {
	records, err := db.ListLiveMessages(ctx, s.database, eventID)
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		return 0, 0, nil
	}
	ev, err := db.GetEvent(ctx, s.database, eventID)
	if err != nil {
		return 0, 0, err
	}
	if ev == nil {
		// The event is gone; its summaries can never be refreshed again.
		return 0, 0, db.PurgeLiveMessages(ctx, s.database, eventID)
	}
	text, err := s.render(ctx, eventID)
	if err != nil {
		return 0, 0, err
	}
	success, failed = s.editAll(records, text)
	if s.log != nil {
		s.log.Infow("live summary refreshed", "event", eventID, "success", success, "failed", failed)
	}
	return success, failed, nil
}

// editAll walks the records in stored order and tallies outcomes. An
// edit that is a no-op because nothing changed counts as a success.
func (s *Sync) editAll(records []models.LiveMessage, text string) (success, failed int) {
	for _, rec := range records {
		err := s.m.Edit(rec.ChatID, rec.MessageID, text, nil)
		switch {
		case err == nil, tg.IsNotModified(err):
			metrics.LiveEdits.WithLabelValues("success").Inc()
			success++
		default:
			metrics.LiveEdits.WithLabelValues("failed").Inc()
			failed++
		}
	}
	return success, failed
}

// render produces the roster summary text shared by PushInitial and
// RefreshAll.
func (s *Sync) render(ctx context.Context, eventID eventid.ID) (string, error) {
	ev, err := db.GetEvent(ctx, s.database, eventID)
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", fmt.Errorf("livemsg: event %s not found", eventID)
	}
	b, err := s.agg.Curate(ctx, eventID, false)
	if err != nil {
		return "", err
	}
	return RenderSummary(*ev, b, time.Now().In(s.loc)), nil
}

// RenderSummary formats the live roster message.
func RenderSummary(ev models.Event, b attendance.Buckets, renderedAt time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s on %s @ %s\n\n", ev.EventType, ev.PrettyDate(), ev.PrettyStart())
	fmt.Fprintf(&sb, "Total attending: %d\n\n", b.TotalAttending())
	fmt.Fprintf(&sb, "Males (%d):\n%s\n\n", len(b.AttendingMale), strings.Join(b.AttendingMale, "\n"))
	fmt.Fprintf(&sb, "Females (%d):\n%s\n\n", len(b.AttendingFemale), strings.Join(b.AttendingFemale, "\n"))
	fmt.Fprintf(&sb, "Absent (%d):\n%s\n\n", len(b.Absent), strings.Join(b.Absent, "\n"))
	fmt.Fprintf(&sb, "Not indicated (%d):\n%s\n\n", len(b.Unindicated), strings.Join(b.Unindicated, "\n"))
	fmt.Fprintf(&sb, "Last updated: %s", renderedAt.Format("2-Jan 3:04PM"))
	return sb.String()
}
