package handlers

import (
	"context"
	"database/sql"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
)

// HandleMyEvents lists the upcoming events the user said yes to.
func HandleMyEvents(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
	chatID := msg.Chat.ID
	events, err := db.ListAttendingEvents(ctx, database, msg.From.ID, eventid.Now(loc))
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch your events, please try again.")
		return
	}
	if len(events) == 0 {
		sendText(bot, chatID, "You have not signed up for any upcoming events 🙈")
		return
	}

	var sb strings.Builder
	sb.WriteString("You are attending:\n")
	for _, ev := range events {
		sb.WriteString("\n• " + ev.EventType + " on " + ev.PrettyDate() + ", " + ev.PrettyStart() + " @ " + ev.Location)
	}
	sendText(bot, chatID, sb.String())
}
