package db

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// UpsertLiveMessage records (or replaces) the chat message last used to
// show the live attendance summary for an event to one chat.
func UpsertLiveMessage(ctx context.Context, database *sql.DB, m models.LiveMessage) error {
	_, err := database.ExecContext(ctx, `
		INSERT INTO live_messages (event_id, chat_id, message_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, chat_id)
		DO UPDATE SET message_id = EXCLUDED.message_id
	`, int64(m.EventID), m.ChatID, m.MessageID)
	return err
}

// ListLiveMessages returns every recorded live message for an event in
// stable order.
func ListLiveMessages(ctx context.Context, database *sql.DB, eventID eventid.ID) ([]models.LiveMessage, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT event_id, chat_id, message_id
		FROM live_messages
		WHERE event_id = $1
		ORDER BY chat_id
	`, int64(eventID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LiveMessage
	for rows.Next() {
		var m models.LiveMessage
		if err := rows.Scan(&m.EventID, &m.ChatID, &m.MessageID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeLiveMessages drops all live message records for an event.
func PurgeLiveMessages(ctx context.Context, database *sql.DB, eventID eventid.ID) error {
	_, err := database.ExecContext(ctx,
		`DELETE FROM live_messages WHERE event_id = $1`, int64(eventID))
	return err
}
