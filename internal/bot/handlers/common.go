package handlers

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const eventsPerPage = 5

// dateButtons renders one page of event pick buttons plus Prev/Next
// scroll buttons. Callback data is the event identity itself; scroll
// buttons carry prefix+"prev"/"next".
func dateButtons(events []models.Event, pageNum int, prefix string) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton

	start := pageNum * eventsPerPage
	for i := start; i < len(events) && i < start+eventsPerPage; i++ {
		ev := events[i]
		label := fmt.Sprintf("%s (%s)", ev.PrettyDate(), ev.EventType)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, ev.ID.String()),
		))
	}

	var scroll []tgbotapi.InlineKeyboardButton
	if pageNum != 0 {
		scroll = append(scroll, tgbotapi.NewInlineKeyboardButtonData("Prev", prefix+"prev"))
	}
	if (pageNum+1)*eventsPerPage < len(events) {
		scroll = append(scroll, tgbotapi.NewInlineKeyboardButtonData("Next", prefix+"next"))
	}
	if len(scroll) > 0 {
		rows = append(rows, scroll)
	}
	return rows
}

// replaceOrSend edits the flow's pinned step message in place, sending
// a fresh one when there is nothing to edit yet. Returns the message id
// that now carries the step.
func replaceOrSend(bot *tgbotapi.BotAPI, chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) int {
	if msgID == 0 {
		msg := tgbotapi.NewMessage(chatID, text)
		if kb != nil {
			msg.ReplyMarkup = kb
		}
		out, err := tg.Send(bot, msg)
		if err != nil {
			metrics.HandlerErrors.Inc()
			return 0
		}
		return out.MessageID
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if kb != nil {
		edit.ReplyMarkup = kb
	}
	if _, err := tg.Send(bot, edit); err != nil && !tg.IsNotModified(err) {
		metrics.HandlerErrors.Inc()
	}
	return msgID
}

func sendText(bot *tgbotapi.BotAPI, chatID int64, text string) {
	if _, err := tg.Send(bot, tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// parseDateTime reads the wizard's "DD/MM/YYYY HHMM" input in loc.
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("02/01/2006 1504", s, loc)
}

// parseClock reads "HHMM" into an hour/minute pair.
func parseClock(s string) (hour, minute int, err error) {
	if len(s) != 4 {
		return 0, 0, fmt.Errorf("want HHMM, got %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, fmt.Errorf("want HHMM, got %q", s)
	}
	hour, minute = n/100, n%100
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%q is not a valid time", s)
	}
	return hour, minute, nil
}

// eventDetails is the shared "Details" block shown before an RSVP and
// after a commit.
func eventDetails(ev models.Event) string {
	return fmt.Sprintf(
		"Details\nDate: %s\nEvent: %s\nTime: %s - %s\nLocation: %s",
		ev.StartAt.Format("2 Jan, Mon"),
		ev.EventType,
		ev.PrettyStart(),
		ev.PrettyEnd(),
		ev.Location,
	)
}

// parseEventCallback resolves callback data that must be an event id.
func parseEventCallback(data string) (eventid.ID, bool) {
	id, err := eventid.Parse(data)
	if err != nil {
		return 0, false
	}
	return id, true
}
