package handlers

import (
	"context"
	"database/sql"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	kayPrev   = "kay_prev"
	kayNext   = "kay_next"
	kayCancel = "kay_cancel"
)

type kaypohState struct {
	Page   int
	Events []models.Event
	MsgID  int
}

var kaypohFSM sync.Map // chatID -> *kaypohState

func InKaypohFlow(chatID int64) bool {
	_, ok := kaypohFSM.Load(chatID)
	return ok
}

// StartKaypohFSM lets a user peek at the live roster of any upcoming
// event their tier may see. The summary message it drops stays live:
// every later attendance change edits it in place.
func StartKaypohFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message, loc *time.Location) {
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
		sendText(bot, chatID, "No upcoming events to kaypoh about 👀")
		return
	}
	st := &kaypohState{Events: events}
	kaypohFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "Which event do you want to kaypoh?", kaypohKeyboard(st))
}

func kaypohKeyboard(st *kaypohState) *tgbotapi.InlineKeyboardMarkup {
	rows := dateButtons(st.Events, st.Page, "kay_")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", kayCancel),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func HandleKaypohCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery, s *livemsg.Sync) {
	chatID := cb.Message.Chat.ID
	v, ok := kaypohFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*kaypohState)
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case kayCancel:
		kaypohFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Kaypoh another time then.", nil)
		return
	case kayPrev:
		st.Page--
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Which event do you want to kaypoh?", kaypohKeyboard(st))
		return
	case kayNext:
		st.Page++
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Which event do you want to kaypoh?", kaypohKeyboard(st))
		return
	}

	id, ok := parseEventCallback(cb.Data)
	if !ok {
		return
	}
	kaypohFSM.Delete(chatID)
	deleteStepMsg(bot, chatID, st.MsgID)
	if _, err := s.PushInitial(ctx, id, chatID); err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch the roster, please try again.")
	}
}

// deleteStepMsg removes the step message so the live summary is not
// preceded by a stale menu.
func deleteStepMsg(bot *tgbotapi.BotAPI, chatID int64, msgID int) {
	if msgID == 0 {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewDeleteMessage(chatID, msgID))
}
