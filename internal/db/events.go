package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// GetEvent returns the event, or (nil, nil) when no row exists.
func GetEvent(ctx context.Context, database *sql.DB, id eventid.ID) (*models.Event, error) {
	row := database.QueryRowContext(ctx, `
		SELECT id, event_type, start_at, end_at, location, announcement,
		       access_control, accountable
		FROM events WHERE id = $1
	`, int64(id))

	var ev models.Event
	err := row.Scan(&ev.ID, &ev.EventType, &ev.StartAt, &ev.EndAt, &ev.Location,
		&ev.Announcement, &ev.AccessControl, &ev.Accountable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func EventExists(ctx context.Context, database *sql.DB, id eventid.ID) (bool, error) {
	var one int
	err := database.QueryRowContext(ctx,
		`SELECT 1 FROM events WHERE id = $1`, int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func InsertEvent(ctx context.Context, database *sql.DB, ev models.Event) error {
	_, err := database.ExecContext(ctx, `
		INSERT INTO events (id, event_type, start_at, end_at, location,
		                    announcement, access_control, accountable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, int64(ev.ID), ev.EventType, ev.StartAt, ev.EndAt, ev.Location,
		ev.Announcement, ev.AccessControl, ev.Accountable)
	return err
}

// UpdateEventFields updates a persisted event whose identity is unchanged.
func UpdateEventFields(ctx context.Context, database *sql.DB, ev models.Event) error {
	_, err := database.ExecContext(ctx, `
		UPDATE events
		SET event_type = $2, start_at = $3, end_at = $4, location = $5,
		    announcement = $6, access_control = $7, accountable = $8
		WHERE id = $1
	`, int64(ev.ID), ev.EventType, ev.StartAt, ev.EndAt, ev.Location,
		ev.Announcement, ev.AccessControl, ev.Accountable)
	return err
}

// RenameEvent moves an event from oldID to ev.ID and rewrites every
// dependent foreign key in the same transaction, so a concurrent reader
// never observes a half-migrated set of rows.
func RenameEvent(ctx context.Context, database *sql.DB, oldID eventid.ID, ev models.Event) error {
	tx, err := database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE events
		SET id = $2, event_type = $3, start_at = $4, end_at = $5, location = $6,
		    announcement = $7, access_control = $8, accountable = $9
		WHERE id = $1
	`, int64(oldID), int64(ev.ID), ev.EventType, ev.StartAt, ev.EndAt,
		ev.Location, ev.Announcement, ev.AccessControl, ev.Accountable); err != nil {
		return err
	}
	for _, stmt := range []string{
		`UPDATE attendance SET event_id = $2 WHERE event_id = $1`,
		`UPDATE announcement_spans SET event_id = $2 WHERE event_id = $1`,
		`UPDATE live_messages SET event_id = $2 WHERE event_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(oldID), int64(ev.ID)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteEvent removes the event and cascades to its attendance rows,
// announcement spans and live message records in one transaction.
func DeleteEvent(ctx context.Context, database *sql.DB, id eventid.ID) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM attendance WHERE event_id = $1`,
		`DELETE FROM announcement_spans WHERE event_id = $1`,
		`DELETE FROM live_messages WHERE event_id = $1`,
		`DELETE FROM events WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(id)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListFutureEvents returns events strictly after the given identity whose
// tier ceiling admits maxTier, in chronological (= identity) order.
func ListFutureEvents(ctx context.Context, database *sql.DB, after eventid.ID, maxTier int) ([]models.Event, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT id, event_type, start_at, end_at, location, announcement,
		       access_control, accountable
		FROM events
		WHERE id > $1 AND access_control <= $2
		ORDER BY id
	`, int64(after), maxTier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListAttendingEvents returns the future events the user has an
// attending row for.
func ListAttendingEvents(ctx context.Context, database *sql.DB, userID int64, after eventid.ID) ([]models.Event, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT e.id, e.event_type, e.start_at, e.end_at, e.location,
		       e.announcement, e.access_control, e.accountable
		FROM events e
		JOIN attendance t ON t.event_id = e.id
		WHERE t.user_id = $1 AND t.status = $2 AND e.id > $3
		ORDER BY e.id
	`, userID, int(models.StatusAttending), int64(after))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// UpdateAnnouncement replaces the announcement body and its style spans
// wholesale. Spans are never patched in place; delete-all/insert-all
// keeps offsets from drifting.
func UpdateAnnouncement(ctx context.Context, database *sql.DB, id eventid.ID, body string, spans []models.StyleSpan) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET announcement = $2 WHERE id = $1`, int64(id), body); err != nil {
		return err
	}
	if err := replaceSpansTx(ctx, tx, id, spans); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceSpansTx(ctx context.Context, tx *sql.Tx, id eventid.ID, spans []models.StyleSpan) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM announcement_spans WHERE event_id = $1`, int64(id)); err != nil {
		return err
	}
	if len(spans) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO announcement_spans (event_id, ord, kind, span_offset, span_length)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, sp := range spans {
		if _, err := stmt.ExecContext(ctx, int64(id), i, sp.Kind, sp.Offset, sp.Length); err != nil {
			return err
		}
	}
	return nil
}

// GetSpans returns the event's announcement style spans in stored order.
func GetSpans(ctx context.Context, database *sql.DB, id eventid.ID) ([]models.StyleSpan, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT kind, span_offset, span_length
		FROM announcement_spans
		WHERE event_id = $1
		ORDER BY ord
	`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []models.StyleSpan
	for rows.Next() {
		var sp models.StyleSpan
		if err := rows.Scan(&sp.Kind, &sp.Offset, &sp.Length); err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.StartAt, &ev.EndAt,
			&ev.Location, &ev.Announcement, &ev.AccessControl, &ev.Accountable); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
