package models

import "github.com/leelingzhen/telegram-attendance-bot/internal/eventid"

// AttendanceStatus keeps the persisted int encoding: 1 attending,
// 0 absent, -1 for "no row" so external tooling reading the status
// column stays compatible.
type AttendanceStatus int

const (
	StatusAbsent    AttendanceStatus = 0
	StatusAttending AttendanceStatus = 1
	StatusUnset     AttendanceStatus = -1
)

func (s AttendanceStatus) Pretty() string {
	switch s {
	case StatusAttending:
		return "Yes"
	case StatusAbsent:
		return "No"
	default:
		return "Not Indicated"
	}
}

// Attendance is one user's RSVP for one event. Absence of a row is a
// distinct state from any stored status.
type Attendance struct {
	EventID eventid.ID
	UserID  int64
	Status  AttendanceStatus
	Reason  string
}

// LiveMessage records which chat message last showed the live
// attendance summary for an event, so it can be edited in place.
type LiveMessage struct {
	EventID   eventid.ID
	ChatID    int64
	MessageID int
}
