package models

import (
	"time"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
)

// Event mirrors the events table. The primary key is derived from the
// start timestamp (see eventid), so a reschedule is a key change.
type Event struct {
	ID            eventid.ID
	EventType     string
	StartAt       time.Time
	EndAt         time.Time
	Location      string
	Announcement  string
	AccessControl int
	Accountable   bool
}

// StyleSpan is one rich-text formatting range over an event's
// announcement body. Spans are stored ordered and replaced wholesale
// on every announcement edit.
type StyleSpan struct {
	Kind   string
	Offset int
	Length int
}

// PrettyDate renders the event date the way both bots display it in
// date buttons and confirmations.
func (e Event) PrettyDate() string {
	return e.StartAt.Format("2-Jan-06, Mon")
}

func (e Event) PrettyStart() string {
	return e.StartAt.Format("3:04PM")
}

func (e Event) PrettyEnd() string {
	return e.EndAt.Format("3:04PM")
}
