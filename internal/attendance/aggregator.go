package attendance

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// Buckets is the full classification of eligible users for one event.
// Every eligible user lands in exactly one bucket; an empty bucket is
// an empty list, never an error.
type Buckets struct {
	AttendingMale   []string
	AttendingFemale []string
	Absent          []string
	Unindicated     []string
}

func (b Buckets) TotalAttending() int {
	return len(b.AttendingMale) + len(b.AttendingFemale)
}

// Aggregator classifies attendance with the store's own predicates:
// members (tier above guest range, team managers excluded) plus guests
// for the attending/absent buckets; only silent members are chased.
type Aggregator struct {
	database *sql.DB
}

func NewAggregator(database *sql.DB) *Aggregator {
	return &Aggregator{database: database}
}

// Curate runs the bucket queries for the event and renders each entry.
// attachUsernames appends handles to unindicated members — wanted in
// admin views, dropped in peer-facing views for privacy. Guests always
// carry their handle regardless.
func (a *Aggregator) Curate(ctx context.Context, eventID eventid.ID, attachUsernames bool) (Buckets, error) {
	var b Buckets

	for _, gender := range []models.Gender{models.Male, models.Female} {
		members, err := db.MemberAttendance(ctx, a.database, eventID, models.StatusAttending, gender)
		if err != nil {
			return Buckets{}, err
		}
		guests, err := db.GuestAttendance(ctx, a.database, eventID, models.StatusAttending, gender)
		if err != nil {
			return Buckets{}, err
		}
		entries := FormatRows(members, false)
		entries = append(entries, FormatRows(guests, false)...)
		if gender == models.Male {
			b.AttendingMale = entries
		} else {
			b.AttendingFemale = entries
		}
	}

	var absentees []db.AttendanceRow
	for _, gender := range []models.Gender{models.Male, models.Female} {
		rows, err := db.MemberAttendance(ctx, a.database, eventID, models.StatusAbsent, gender)
		if err != nil {
			return Buckets{}, err
		}
		absentees = append(absentees, rows...)
	}
	for _, gender := range []models.Gender{models.Male, models.Female} {
		rows, err := db.GuestAttendance(ctx, a.database, eventID, models.StatusAbsent, gender)
		if err != nil {
			return Buckets{}, err
		}
		absentees = append(absentees, rows...)
	}
	b.Absent = FormatRows(absentees, false)

	unindicated, err := db.UnindicatedMembers(ctx, a.database, eventID)
	if err != nil {
		return Buckets{}, err
	}
	b.Unindicated = FormatRows(unindicated, attachUsernames)

	return b, nil
}

// UnindicatedRecipients returns the raw unindicated rows for reminder
// broadcasts, keeping the query's stable order.
func (a *Aggregator) UnindicatedRecipients(ctx context.Context, eventID eventid.ID) ([]db.AttendanceRow, error) {
	return db.UnindicatedMembers(ctx, a.database, eventID)
}

// FormatRows renders query rows into roster lines. Guests get the
// "(guest) " prefix and always their handle; non-guests get a handle
// only when explicitly requested.
func FormatRows(rows []db.AttendanceRow, attachUsernames bool) []string {
	formatted := make([]string, 0, len(rows))
	for _, r := range rows {
		entry := r.Name

		if r.HasReason && r.Reason != "" {
			entry += "(" + r.Reason + ")"
		}
		guest := models.IsGuestTier(r.Tier)
		if guest {
			entry = "(guest) " + entry
		}
		if attachUsernames || guest {
			handle := "privated"
			if r.Handle != "" {
				handle = "@" + r.Handle
			}
			entry += " - " + handle
		}

		formatted = append(formatted, entry)
	}
	return formatted
}
