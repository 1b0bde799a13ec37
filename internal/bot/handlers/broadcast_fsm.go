package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/access"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/broadcast"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	bcStepCompose = iota
	bcStepConfirm

	bcPin     = "bc_pin"
	bcConfirm = "bc_go"
	bcCancel  = "bc_cancel"
)

type broadcastState struct {
	Step  int
	Text  string
	Spans []models.StyleSpan
	Pin   bool
	MsgID int
}

var broadcastFSM sync.Map // chatID -> *broadcastState

func InBroadcastFlow(chatID int64) bool {
	_, ok := broadcastFSM.Load(chatID)
	return ok
}

// StartBroadcastFSM composes a club-wide message to every opted-in user
// with bot access. Admin tier and above.
func StartBroadcastFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tier, err := db.TierOf(ctx, database, msg.From.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !access.IsAuthorized(tier, models.TierAdmin) {
		sendText(bot, chatID, "You need admin access to broadcast to the club.")
		return
	}
	st := &broadcastState{Step: bcStepCompose}
	broadcastFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0,
		"Send the broadcast message. Formatting is kept.", nil)
}

func broadcastConfirmKeyboard(st *broadcastState) *tgbotapi.InlineKeyboardMarkup {
	pinLabel := "📌 Pin: off"
	if st.Pin {
		pinLabel = "📌 Pin: on"
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(pinLabel, bcPin)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📨 Send it", bcConfirm)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", bcCancel)),
	)
	return &kb
}

func HandleBroadcastText(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	v, ok := broadcastFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*broadcastState)
	if st.Step != bcStepCompose {
		return
	}
	if fsmutil.IsCancelText(msg.Text) {
		broadcastFSM.Delete(chatID)
		sendText(bot, chatID, "Nothing sent.")
		return
	}
	st.Text = msg.Text
	st.Spans = tg.EntitiesToSpans(msg.Entities)
	st.Step = bcStepConfirm
	st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
		"Going to every opted-in user:\n\n"+st.Text+"\n\nSend it?", broadcastConfirmKeyboard(st))
}

func HandleBroadcastCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	v, ok := broadcastFSM.Load(chatID)
	if !ok {
		return
	}
	st := v.(*broadcastState)
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case bcCancel:
		broadcastFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Nothing sent.", nil)

	case bcPin:
		if st.Step != bcStepConfirm {
			return
		}
		st.Pin = !st.Pin
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"Going to every opted-in user:\n\n"+st.Text+"\n\nSend it?", broadcastConfirmKeyboard(st))

	case bcConfirm:
		if st.Step != bcStepConfirm {
			return
		}
		broadcastFSM.Delete(chatID)
		runClubBroadcast(ctx, bot, database, st, chatID)
	}
}

func runClubBroadcast(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, st *broadcastState, chatID int64) {
	if !fsmutil.SetPending(chatID, "broadcast") {
		sendText(bot, chatID, "A broadcast from this chat is already running.")
		return
	}
	defer fsmutil.ClearPending(chatID, "broadcast")

	recipients, err := db.ListRecipients(ctx, database, models.BotAccessFloor, true)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, fmt.Sprintf("Could not build the recipient list: %v", err))
		return
	}
	if len(recipients) == 0 {
		replaceOrSend(bot, chatID, st.MsgID, "Nobody to send to.", nil)
		return
	}

	d := broadcast.New(tg.NewBotMessenger(bot))
	runBroadcast(bot, chatID, st.MsgID, recipients, d.SendToList(recipients, st.Text, st.Spans, st.Pin))
}
