// Package event owns the event lifecycle: identity derivation from the
// start time, conflict detection before commit, and the rename cascade
// that keeps dependent rows consistent when a reschedule changes the
// primary key.
package event

import (
	"context"
	"database/sql"
	"time"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// DefaultDuration applies to freshly created events until the editor
// sets an end time.
const DefaultDuration = 2 * time.Hour

// Record is one event being viewed or edited. It carries a pending
// identity next to the last stored one; the two diverging means the
// next Commit is a rename and must cascade.
type Record struct {
	database *sql.DB

	Event models.Event
	Spans []models.StyleSpan

	storedID eventid.ID // identity at load time, 0 when uncommitted
	exists   bool
}

// New returns an uncommitted record at the identity encoded from start,
// with the editor defaults filled in.
func New(database *sql.DB, start time.Time) *Record {
	id := eventid.Encode(start)
	return &Record{
		database: database,
		Event: models.Event{
			ID:            id,
			EventType:     "Field Training",
			StartAt:       start.Truncate(time.Minute),
			EndAt:         start.Truncate(time.Minute).Add(DefaultDuration),
			AccessControl: models.TierGuestMin,
		},
	}
}

// Load pulls the event and its announcement spans. A missing row is not
// an error: the record comes back blank and uncommitted at that id.
func Load(ctx context.Context, database *sql.DB, id eventid.ID, loc *time.Location) (*Record, error) {
	ev, err := db.GetEvent(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		start, err := id.Time(loc)
		if err != nil {
			return nil, err
		}
		return New(database, start), nil
	}

	spans, err := db.GetSpans(ctx, database, id)
	if err != nil {
		return nil, err
	}
	return &Record{
		database: database,
		Event:    *ev,
		Spans:    spans,
		storedID: id,
		exists:   true,
	}, nil
}

// Exists reports whether the record is backed by a stored row.
func (r *Record) Exists() bool { return r.exists }

// StoredID returns the identity the event is currently persisted under.
func (r *Record) StoredID() eventid.ID { return r.storedID }

// RescheduleTo sets a pending new identity derived from the new start.
// Storage is untouched until Commit. The end time keeps its duration.
func (r *Record) RescheduleTo(start time.Time) {
	start = start.Truncate(time.Minute)
	duration := r.Event.EndAt.Sub(r.Event.StartAt)
	if duration <= 0 {
		duration = DefaultDuration
	}
	r.Event.ID = eventid.Encode(start)
	r.Event.StartAt = start
	r.Event.EndAt = start.Add(duration)
}

// SetEndTime replaces the end clock time on the event's date.
func (r *Record) SetEndTime(hour, minute int) {
	d := r.Event.StartAt
	end := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
	if end.Before(r.Event.StartAt) {
		end = end.AddDate(0, 0, 1) // past-midnight finish
	}
	r.Event.EndAt = end
}

func (r *Record) SetType(t string)       { r.Event.EventType = t }
func (r *Record) SetLocation(l string)   { r.Event.Location = l }
func (r *Record) SetAccess(tier int)     { r.Event.AccessControl = tier }
func (r *Record) SetAccountable(on bool) { r.Event.Accountable = on }

// SetAnnouncement replaces the announcement body and the full span
// list on the record. Persisted by Commit or PushAnnouncement.
func (r *Record) SetAnnouncement(body string, spans []models.StyleSpan) {
	r.Event.Announcement = body
	r.Spans = spans
}

// HasConflict reports whether committing now would collide with a
// different stored event: a creation at an occupied identity, or a
// rename whose target identity is occupied. It is the sole guard
// between a committing transition and storage mutation.
func (r *Record) HasConflict(ctx context.Context) (bool, error) {
	if r.exists && r.storedID == r.Event.ID {
		return false, nil
	}
	return db.EventExists(ctx, r.database, r.Event.ID)
}

// Commit persists the record: insert when new, plain update when the
// identity is unchanged, rename cascade otherwise. Callers must have
// checked HasConflict; a collision here surfaces as a storage error.
func (r *Record) Commit(ctx context.Context) error {
	switch {
	case !r.exists:
		if err := db.InsertEvent(ctx, r.database, r.Event); err != nil {
			return err
		}
		if err := db.UpdateAnnouncement(ctx, r.database, r.Event.ID, r.Event.Announcement, r.Spans); err != nil {
			return err
		}
	case r.storedID != r.Event.ID:
		if err := db.RenameEvent(ctx, r.database, r.storedID, r.Event); err != nil {
			return err
		}
	default:
		if err := db.UpdateEventFields(ctx, r.database, r.Event); err != nil {
			return err
		}
	}
	r.exists = true
	r.storedID = r.Event.ID
	return nil
}

// PushAnnouncement persists the announcement body and wholesale
// replaces the stored span list for an already committed event.
func (r *Record) PushAnnouncement(ctx context.Context) error {
	return db.UpdateAnnouncement(ctx, r.database, r.storedID, r.Event.Announcement, r.Spans)
}

// Delete removes the stored event, cascading to attendance rows,
// announcement spans and live message records.
func (r *Record) Delete(ctx context.Context) error {
	if !r.exists {
		return nil
	}
	if err := db.DeleteEvent(ctx, r.database, r.storedID); err != nil {
		return err
	}
	r.exists = false
	r.storedID = 0
	return nil
}
