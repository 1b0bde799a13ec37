package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// GetAttendance returns the RSVP row, or (nil, nil) when the user has
// not indicated — no row is the "unindicated" state, not an error.
func GetAttendance(ctx context.Context, database *sql.DB, eventID eventid.ID, userID int64) (*models.Attendance, error) {
	row := database.QueryRowContext(ctx, `
		SELECT event_id, user_id, status, reason
		FROM attendance
		WHERE event_id = $1 AND user_id = $2
	`, int64(eventID), userID)

	var a models.Attendance
	err := row.Scan(&a.EventID, &a.UserID, &a.Status, &a.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAttendance is the single upsert contract for RSVP rows: the
// existence check and the write are one atomic statement.
func UpsertAttendance(ctx context.Context, database *sql.DB, a models.Attendance) error {
	_, err := database.ExecContext(ctx, `
		INSERT INTO attendance (event_id, user_id, status, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason
	`, int64(a.EventID), a.UserID, int(a.Status), a.Reason)
	return err
}

// AttendanceRow is one roster entry produced by the bucket queries.
type AttendanceRow struct {
	UserID    int64
	Name      string
	Gender    models.Gender
	Handle    string
	Tier      int
	Status    models.AttendanceStatus
	Reason    string
	HasReason bool
}

// MemberAttendance queries RSVP rows for the member population
// (tier above guest range, team managers excluded) filtered by status
// and gender. Sorted by name then gender descending, at query level.
func MemberAttendance(ctx context.Context, database *sql.DB, eventID eventid.ID, status models.AttendanceStatus, gender models.Gender) ([]AttendanceRow, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.gender, u.handle, a.tier, t.status, t.reason
		FROM users u
		JOIN attendance t ON t.user_id = u.id
		JOIN access_control a ON a.user_id = u.id
		WHERE t.event_id = $1
		  AND u.hidden = FALSE
		  AND t.status = $2
		  AND u.gender = $3
		  AND a.tier > $4
		  AND a.tier <> $5
		ORDER BY lower(u.name), u.gender DESC
	`, int64(eventID), int(status), string(gender),
		models.TierGuestMax, models.TierTeamManager)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows, true)
}

// GuestAttendance queries RSVP rows for the guest tier range. Guests
// who RSVP appear in rosters but are never chased for being silent.
func GuestAttendance(ctx context.Context, database *sql.DB, eventID eventid.ID, status models.AttendanceStatus, gender models.Gender) ([]AttendanceRow, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.gender, u.handle, a.tier, t.status, t.reason
		FROM users u
		JOIN attendance t ON t.user_id = u.id
		JOIN access_control a ON a.user_id = u.id
		WHERE t.event_id = $1
		  AND u.hidden = FALSE
		  AND t.status = $2
		  AND u.gender = $3
		  AND a.tier BETWEEN $4 AND $5
		ORDER BY lower(u.name), u.gender DESC
	`, int64(eventID), int(status), string(gender),
		models.TierGuestMin, models.TierGuestMax)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows, true)
}

// UnindicatedMembers anti-joins attendance: members (notification on,
// not hidden, not team manager) with no RSVP row at all for the event.
// A stored explicit "No" is absence, not unindicated.
func UnindicatedMembers(ctx context.Context, database *sql.DB, eventID eventid.ID) ([]AttendanceRow, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.gender, u.handle, a.tier
		FROM users u
		JOIN access_control a ON a.user_id = u.id
		WHERE NOT EXISTS (
			SELECT 1 FROM attendance t
			WHERE t.event_id = $1 AND t.user_id = u.id
		)
		  AND u.notification = TRUE
		  AND u.hidden = FALSE
		  AND a.tier >= $2
		  AND a.tier <> $3
		ORDER BY u.gender DESC, lower(u.name)
	`, int64(eventID), models.TierMember, models.TierTeamManager)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceRow
	for rows.Next() {
		r := AttendanceRow{Status: models.StatusUnset}
		if err := rows.Scan(&r.UserID, &r.Name, &r.Gender, &r.Handle, &r.Tier); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttendingRecipients returns the users with an attending RSVP for the
// event, in the stable recipient order the broadcast layer expects.
func AttendingRecipients(ctx context.Context, database *sql.DB, eventID eventid.ID) ([]models.User, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.handle, u.gender, u.notification, u.hidden, a.tier
		FROM users u
		JOIN attendance t ON t.user_id = u.id
		JOIN access_control a ON a.user_id = u.id
		WHERE t.event_id = $1 AND t.status = $2 AND u.hidden = FALSE
		ORDER BY lower(u.name), u.id
	`, int64(eventID), int(models.StatusAttending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// CountAttendance returns how many RSVP rows an event has; used to show
// migration results after a reschedule and in admin summaries.
func CountAttendance(ctx context.Context, database *sql.DB, eventID eventid.ID) (int, error) {
	var n int
	err := database.QueryRowContext(ctx,
		`SELECT count(*) FROM attendance WHERE event_id = $1`, int64(eventID)).Scan(&n)
	return n, err
}

func scanAttendanceRows(rows *sql.Rows, hasReason bool) ([]AttendanceRow, error) {
	var out []AttendanceRow
	for rows.Next() {
		r := AttendanceRow{HasReason: hasReason}
		if err := rows.Scan(&r.UserID, &r.Name, &r.Gender, &r.Handle, &r.Tier, &r.Status, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
