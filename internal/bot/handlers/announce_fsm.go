package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/access"
	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/broadcast"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	annStepMode = iota
	annStepPickEvent
	annStepConfirm

	annModeAnnounce = "ann_mode_announce"
	annModeChase    = "ann_mode_chase"
	annPrev         = "ann_prev"
	annNext         = "ann_next"
	annPin          = "ann_pin"
	annConfirm      = "ann_go"
	annCancel       = "ann_cancel"

	// progressEvery throttles edits on the sending counter; Telegram
	// rejects edit storms long before a club-sized list is done.
	progressEvery = 10
)

type announceState struct {
	Step    int
	Chase   bool
	Page    int
	Events  []models.Event
	EventID eventid.ID
	Event   models.Event
	Pin     bool
	MsgID   int
}

var announceFSM sync.Map // chatID -> *announceState

func InAnnounceFlow(chatID int64) bool {
	_, ok := announceFSM.Load(chatID)
	return ok
}

// StartAnnounceFSM is the reminder surface: push an event's saved
// announcement to everyone attending plus the silent members, or chase
// the silent members alone. Core tier and above.
func StartAnnounceFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tier, err := db.TierOf(ctx, database, msg.From.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !access.IsAuthorized(tier, models.TierCore) {
		sendText(bot, chatID, "You need core access to send reminders.")
		return
	}
	st := &announceState{Step: annStepMode}
	announceFSM.Store(chatID, st)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📣 Push announcement", annModeAnnounce)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Chase silent members", annModeChase)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", annCancel)),
	)
	st.MsgID = replaceOrSend(bot, chatID, 0, "What kind of reminder?", &kb)
}

func announcePickKeyboard(st *announceState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "ann_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", annCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func announceConfirmKeyboard(st *announceState) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	if !st.Chase {
		pinLabel := "📌 Pin: off"
		if st.Pin {
			pinLabel = "📌 Pin: on"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(pinLabel, annPin)))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📨 Send it", annConfirm)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", annCancel)),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func HandleAnnounceCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery, loc *time.Location) {
	chatID := cb.Message.Chat.ID
	v, ok := announceFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*announceState)
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case annCancel:
		announceFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Nothing sent.", nil)
		return

	case annModeAnnounce, annModeChase:
		if st.Step != annStepMode {
			return
		}
		st.Chase = cb.Data == annModeChase
		events, err := db.ListFutureEvents(ctx, database, eventid.Now(loc), models.TierTeamManager)
		if err != nil {
			metrics.HandlerErrors.Inc()
			sendText(bot, chatID, "Could not fetch events, please try again.")
			return
		}
		if len(events) == 0 {
			announceFSM.Delete(chatID)
			replaceOrSend(bot, chatID, st.MsgID, "No upcoming events.", nil)
			return
		}
		st.Step = annStepPickEvent
		st.Events = events
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "For which event?", announcePickKeyboard(st))
		return

	case annPrev, annNext:
		if st.Step != annStepPickEvent {
			return
		}
		if cb.Data == annPrev {
			st.Page--
		} else {
			st.Page++
		}
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "For which event?", announcePickKeyboard(st))
		return

	case annPin:
		if st.Step != annStepConfirm {
			return
		}
		st.Pin = !st.Pin
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, announcePreview(st), announceConfirmKeyboard(st))
		return

	case annConfirm:
		if st.Step != annStepConfirm {
			return
		}
		announceFSM.Delete(chatID)
		runAnnouncement(ctx, bot, database, st, chatID, cb.From)
		return
	}

	if st.Step != annStepPickEvent {
		return
	}
	id, ok := parseEventCallback(cb.Data)
	if !ok {
		return
	}
	ev, err := db.GetEvent(ctx, database, id)
	if err != nil || ev == nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !st.Chase && ev.Announcement == "" {
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"That event has no announcement yet — write one under Manage Events first.\n\nFor which event?",
			announcePickKeyboard(st))
		return
	}
	st.Step = annStepConfirm
	st.EventID = id
	st.Event = *ev
	st.MsgID = replaceOrSend(bot, chatID, st.MsgID, announcePreview(st), announceConfirmKeyboard(st))
}

func announcePreview(st *announceState) string {
	if st.Chase {
		return "Going to members who have not indicated:\n\n" +
			chaseText(st.Event) + "\n\nSend it?"
	}
	return "Going to everyone attending plus unindicated members:\n\n" +
		st.Event.Announcement + "\n\nSend it?"
}

func chaseText(ev models.Event) string {
	return "Hey hey! You have not indicated your attendance for:\n\n" +
		eventDetails(ev) + "\n\nDo indicate soon, the captains beg you 🙏"
}

// runAnnouncement fans the message out and live-updates a progress
// counter while the send sequence is consumed.
func runAnnouncement(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, st *announceState, chatID int64, from *tgbotapi.User) {
	if !fsmutil.SetPending(chatID, "announce") {
		sendText(bot, chatID, "A broadcast from this chat is already running.")
		return
	}
	defer fsmutil.ClearPending(chatID, "announce")

	var (
		recipients []models.User
		text       string
		spans      []models.StyleSpan
		err        error
	)
	if st.Chase {
		recipients, err = chaseRecipients(ctx, database, st.EventID)
		text = chaseText(st.Event)
	} else {
		recipients, err = announcementRecipients(ctx, database, st.EventID)
		if err == nil {
			spans, err = db.GetSpans(ctx, database, st.EventID)
			text, spans = signAnnouncement(st.Event.Announcement, spans, from.UserName)
		}
	}
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not build the broadcast, please try again.")
		return
	}
	if len(recipients) == 0 {
		replaceOrSend(bot, chatID, st.MsgID, "Nobody to send to.", nil)
		return
	}

	d := broadcast.New(tg.NewBotMessenger(bot))
	runBroadcast(bot, chatID, st.MsgID, recipients, d.SendToList(recipients, text, spans, st.Pin && !st.Chase))
}

// announcementRecipients is attending users plus unindicated members,
// deduplicated by id (a user cannot be both, but the merge stays safe
// if the queries ever overlap).
func announcementRecipients(ctx context.Context, database *sql.DB, eventID eventid.ID) ([]models.User, error) {
	attending, err := db.AttendingRecipients(ctx, database, eventID)
	if err != nil {
		return nil, err
	}
	silent, err := chaseRecipients(ctx, database, eventID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(attending))
	out := make([]models.User, 0, len(attending)+len(silent))
	for _, u := range attending {
		seen[u.ID] = true
		out = append(out, u)
	}
	for _, u := range silent {
		if seen[u.ID] {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func chaseRecipients(ctx context.Context, database *sql.DB, eventID eventid.ID) ([]models.User, error) {
	rows, err := attendance.NewAggregator(database).UnindicatedRecipients(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.User{
			ID:     r.UserID,
			Name:   r.Name,
			Handle: r.Handle,
			Gender: r.Gender,
			Tier:   r.Tier,
		})
	}
	return out, nil
}

// signAnnouncement appends the sender's signature as an italic span so
// recipients know who to reply to. Span offsets count UTF-16 code
// units, matching the wire entity encoding.
func signAnnouncement(body string, spans []models.StyleSpan, handle string) (string, []models.StyleSpan) {
	if handle == "" {
		return body, spans
	}
	sig := "- @" + handle
	offset := len(utf16.Encode([]rune(body))) + 2
	spans = append(spans, models.StyleSpan{
		Kind:   "italic",
		Offset: offset,
		Length: len(utf16.Encode([]rune(sig))),
	})
	return body + "\n\n" + sig, spans
}

// runBroadcast drains a send sequence, edits the progress message as it
// goes and reports the final tally with any unreachable handles.
func runBroadcast(bot *tgbotapi.BotAPI, chatID int64, msgID int, recipients []models.User, seq func(func(string, error) bool)) {
	total := len(recipients)
	msgID = replaceOrSend(bot, chatID, msgID, fmt.Sprintf("Sending... 0/%d", total), nil)

	var sent, done int
	var failed []string
	for outcome, err := range seq {
		if err != nil {
			metrics.HandlerErrors.Inc()
			replaceOrSend(bot, chatID, msgID,
				fmt.Sprintf("Broadcast stopped after %d/%d: %v", done, total, err), nil)
			return
		}
		done++
		if outcome == broadcast.Success {
			sent++
		} else {
			failed = append(failed, outcome)
		}
		if done%progressEvery == 0 {
			msgID = replaceOrSend(bot, chatID, msgID, fmt.Sprintf("Sending... %d/%d", done, total), nil)
		}
	}

	report := fmt.Sprintf("Done! Sent to %d/%d.", sent, total)
	if len(failed) > 0 {
		report += "\n\nCould not reach:"
		for _, h := range failed {
			report += "\n• " + h
		}
	}
	replaceOrSend(bot, chatID, msgID, report, nil)
}
