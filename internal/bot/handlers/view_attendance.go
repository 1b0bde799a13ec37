package handlers

import (
	"context"
	"database/sql"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	viewPrev   = "view_prev"
	viewNext   = "view_next"
	viewCancel = "view_cancel"
)

type viewState struct {
	Page   int
	Events []models.Event
	MsgID  int
}

var viewFSM sync.Map // chatID -> *viewState

func InViewFlow(chatID int64) bool {
	_, ok := viewFSM.Load(chatID)
	return ok
}

// StartViewAttendance shows the full curated roster for one event, with
// handles attached so an admin can follow up with anyone directly.
func StartViewAttendance(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
	chatID := msg.Chat.ID
	events, err := db.ListFutureEvents(ctx, database, eventid.Now(loc), models.TierTeamManager)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch events, please try again.")
		return
	}
	if len(events) == 0 {
		sendText(bot, chatID, "No upcoming events.")
		return
	}
	st := &viewState{Events: events}
	viewFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "View attendance for which event?", viewKeyboard(st))
}

func viewKeyboard(st *viewState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "view_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", viewCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func HandleViewCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery, loc *time.Location) {
	chatID := cb.Message.Chat.ID
	v, ok := viewFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*viewState)
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case viewCancel:
		viewFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Okay.", nil)
		return
	case viewPrev:
		st.Page--
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "View attendance for which event?", viewKeyboard(st))
		return
	case viewNext:
		st.Page++
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "View attendance for which event?", viewKeyboard(st))
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
	b, err := attendance.NewAggregator(database).Curate(ctx, id, true)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch the roster, please try again.")
		return
	}
	viewFSM.Delete(chatID)
	replaceOrSend(bot, chatID, st.MsgID, livemsg.RenderSummary(*ev, b, time.Now().In(loc)), nil)
}
