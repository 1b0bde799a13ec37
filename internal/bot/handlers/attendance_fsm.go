package handlers

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	attStepPickEvent = iota
	attStepIndicate
	attStepReason

	attYes    = "att_yes"
	attYesBut = "att_yesbut"
	attNo     = "att_no"
	attPrev   = "att_prev"
	attNext   = "att_next"
	attCancel = "att_cancel"
)

type attendanceState struct {
	Step       int
	Page       int
	Events     []models.Event
	EventID    eventid.ID
	Event      models.Event
	PrevStatus models.AttendanceStatus
	NextStatus models.AttendanceStatus
	MsgID      int
}

var attendanceFSM sync.Map // chatID -> *attendanceState

func getAttendanceState(chatID int64) *attendanceState {
	v, ok := attendanceFSM.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*attendanceState)
}

func InAttendanceFlow(chatID int64) bool { return getAttendanceState(chatID) != nil }

// StartAttendanceFSM lists upcoming events the user's tier may see.
func StartAttendanceFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
	chatID := msg.Chat.ID
	u, err := EnsureUser(ctx, database, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}

	events, err := db.ListFutureEvents(ctx, database, eventid.Now(loc), u.Tier)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch events, please try again.")
		return
	}
	if len(events) == 0 {
		sendText(bot, chatID, "No upcoming events for now. Enjoy the rest 🏖")
		return
	}

	st := &attendanceState{Step: attStepPickEvent, Events: events}
	attendanceFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "Which event are you indicating for?", attPickKeyboard(st))
}

func attPickKeyboard(st *attendanceState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "att_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", attCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// HandleAttendanceText consumes the free-text reason step and commits.
func HandleAttendanceText(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, queue *livemsg.RefreshQueue) {
	chatID := msg.Chat.ID
	st := getAttendanceState(chatID)
	if st == nil || st.Step != attStepReason {
		return
	}
	if fsmutil.IsCancelText(msg.Text) {
		attendanceFSM.Delete(chatID)
		sendText(bot, chatID, "No changes made.")
		return
	}
	reason := strings.TrimSpace(msg.Text)
	if reason == "" && st.NextStatus == models.StatusAbsent && st.Event.Accountable {
		sendText(bot, chatID, "This event needs a reason with a \"No\" — please send one.")
		return
	}
	commitAttendance(ctx, bot, database, st, chatID, msg.From.ID, reason, queue)
}

// HandleAttendanceCallback consumes the pick/indicate button steps.
func HandleAttendanceCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery, queue *livemsg.RefreshQueue) {
	chatID := cb.Message.Chat.ID
	st := getAttendanceState(chatID)
	if st == nil {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case attCancel:
		attendanceFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "No changes made.", nil)
		return

	case attPrev, attNext:
		if st.Step != attStepPickEvent {
			return
		}
		if cb.Data == attPrev {
			st.Page--
		} else {
			st.Page++
		}
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Which event are you indicating for?", attPickKeyboard(st))
		return

	case attYes:
		if st.Step != attStepIndicate {
			return
		}
		st.NextStatus = models.StatusAttending
		commitAttendance(ctx, bot, database, st, chatID, cb.From.ID, "", queue)
		return

	case attYesBut, attNo:
		if st.Step != attStepIndicate {
			return
		}
		st.NextStatus = models.StatusAttending
		prompt := "Please write a comment/reason 😏"
		if cb.Data == attNo {
			st.NextStatus = models.StatusAbsent
			if !st.Event.Accountable {
				commitAttendance(ctx, bot, database, st, chatID, cb.From.ID, "", queue)
				return
			}
			prompt = "Sad! Please write a reason for missing this one."
		}
		st.Step = attStepReason
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, prompt, nil)
		return
	}

	// Anything else on the pick step must be an event identity.
	if st.Step != attStepPickEvent {
		return
	}
	id, ok := parseEventCallback(cb.Data)
	if !ok {
		return
	}
	showIndicateStep(ctx, bot, database, st, chatID, cb.From.ID, id)
}

func showIndicateStep(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, st *attendanceState, chatID, userID int64, id eventid.ID) {
	ev, err := db.GetEvent(ctx, database, id)
	if err != nil || ev == nil {
		metrics.HandlerErrors.Inc()
		replaceOrSend(bot, chatID, st.MsgID, "That event is gone — pick another.", attPickKeyboard(st))
		return
	}
	rec, err := attendance.LoadRecord(ctx, database, id, userID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}

	st.Step = attStepIndicate
	st.EventID = id
	st.Event = *ev
	st.PrevStatus = rec.Status

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Yes I ❤️ the club", attYes)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Yes but...", attYesBut)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("No (lame)", attNo)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", attCancel)),
	)
	text := "Your attendance is indicated as '" + rec.Pretty() + "'\n\n" +
		eventDetails(*ev) + "\n\nWould you like to go for " + ev.EventType + "?"
	st.MsgID = replaceOrSend(bot, chatID, st.MsgID, text, &kb)
}

// commitAttendance upserts the RSVP, confirms, re-delivers the
// announcement when the transition calls for it, and enqueues the live
// summary refresh. Runs to completion once entered; cancel is only
// honoured at the menu steps before this point.
func commitAttendance(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, st *attendanceState, chatID, userID int64, reason string, queue *livemsg.RefreshQueue) {
	rec, err := attendance.LoadRecord(ctx, database, st.EventID, userID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not update your attendance, please try again.")
		return
	}
	rec.SetStatus(st.NextStatus == models.StatusAttending)
	rec.SetReason(reason)
	if err := rec.Update(ctx); err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not update your attendance, please try again.")
		return
	}
	attendanceFSM.Delete(chatID)

	comment := "See you at training! 🦾🦾"
	if st.NextStatus == models.StatusAbsent {
		comment = "Hope to see you soon 🥲🥲"
	}
	text := "You have successfully updated your attendance! 🤖\n\n" +
		eventDetails(st.Event) + "\nAttendance: " + st.NextStatus.Pretty()
	if reason != "" {
		text += "\nComments: " + reason
	}
	sendText(bot, chatID, text+"\n\n"+comment)

	maybeResendAnnouncement(ctx, bot, database, st, userID)
	queue.Enqueue(st.EventID)
}

// maybeResendAnnouncement applies the re-push rule to the transition
// that just happened.
func maybeResendAnnouncement(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, st *attendanceState, userID int64) {
	tier, err := db.TierOf(ctx, database, userID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !attendance.ShouldResendAnnouncement(st.PrevStatus, st.NextStatus, tier, st.Event.Announcement) {
		return
	}
	spans, err := db.GetSpans(ctx, database, st.EventID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	out := tgbotapi.NewMessage(userID, st.Event.Announcement)
	out.Entities = tg.SpansToEntities(spans)
	if _, err := tg.Send(bot, out); err != nil {
		metrics.HandlerErrors.Inc()
	}
}
