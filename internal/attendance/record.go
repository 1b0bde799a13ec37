// Package attendance holds the RSVP record and the aggregation core
// that classifies every eligible user into the four roster buckets.
package attendance

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// Record is one user's RSVP for one event. Construction reads the
// current stored state; Update pushes it back as a single upsert. The
// record does not refresh itself after Update.
type Record struct {
	database *sql.DB

	EventID eventid.ID
	UserID  int64
	Exists  bool
	Status  models.AttendanceStatus
	Reason  string
}

// LoadRecord reads the RSVP state for (user, event). No stored row
// yields Exists=false and StatusUnset.
func LoadRecord(ctx context.Context, database *sql.DB, eventID eventid.ID, userID int64) (*Record, error) {
	r := &Record{
		database: database,
		EventID:  eventID,
		UserID:   userID,
		Status:   models.StatusUnset,
	}
	stored, err := db.GetAttendance(ctx, database, eventID, userID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		r.Exists = true
		r.Status = stored.Status
		r.Reason = stored.Reason
	}
	return r, nil
}

func (r *Record) SetStatus(attending bool) {
	if attending {
		r.Status = models.StatusAttending
	} else {
		r.Status = models.StatusAbsent
	}
}

func (r *Record) SetReason(reason string) {
	r.Reason = reason
}

// Update upserts the record. Re-reading afterwards is the caller's
// responsibility.
func (r *Record) Update(ctx context.Context) error {
	return db.UpsertAttendance(ctx, r.database, models.Attendance{
		EventID: r.EventID,
		UserID:  r.UserID,
		Status:  r.Status,
		Reason:  r.Reason,
	})
}

// Pretty renders the indication for the personal view, e.g.
// "Yes (coming late)" or "Not Indicated".
func (r *Record) Pretty() string {
	out := r.Status.Pretty()
	if r.Reason != "" {
		out += " (" + r.Reason + ")"
	}
	return out
}

// ShouldResendAnnouncement decides whether a status change must
// re-deliver the event announcement to the user: a first indication by
// someone below the member tier, or an absentee flipping to attending.
// No announcement, no push.
func ShouldResendAnnouncement(prev, next models.AttendanceStatus, tier int, announcement string) bool {
	if announcement == "" {
		return false
	}
	if prev == models.StatusUnset && next != models.StatusUnset && tier < models.TierMember {
		return true
	}
	if prev == models.StatusAbsent && next == models.StatusAttending {
		return true
	}
	return false
}
