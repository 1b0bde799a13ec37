package handlers

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	setStepMenu = iota
	setStepName

	setPickName   = "set_name"
	setPickNotify = "set_notify"
	setCancel     = "set_cancel"
)

type settingsState struct {
	Step  int
	MsgID int
}

var settingsFSM sync.Map // chatID -> *settingsState

func getSettingsState(chatID int64) *settingsState {
	v, ok := settingsFSM.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*settingsState)
}

func InSettingsFlow(chatID int64) bool { return getSettingsState(chatID) != nil }

// StartSettingsFSM shows the settings menu with current values.
func StartSettingsFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	u, err := EnsureUser(ctx, database, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}

	st := &settingsState{Step: setStepMenu}
	settingsFSM.Store(chatID, st)

	notify := "off"
	if u.Notification {
		notify = "on"
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Change name", setPickName),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Toggle notifications", setPickNotify),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", setCancel),
		),
	)
	st.MsgID = replaceOrSend(bot, chatID, 0,
		"Settings\nName: "+u.Name+"\nNotifications: "+notify, &kb)
}

func HandleSettingsText(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st := getSettingsState(chatID)
	if st == nil || st.Step != setStepName {
		return
	}
	if fsmutil.IsCancelText(msg.Text) {
		settingsFSM.Delete(chatID)
		sendText(bot, chatID, "Settings closed.")
		return
	}
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		sendText(bot, chatID, "Please send the new name as plain text.")
		return
	}
	if err := db.UpdateName(ctx, database, msg.From.ID, name); err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not update your name, please try again.")
		return
	}
	settingsFSM.Delete(chatID)
	sendText(bot, chatID, "Name updated to "+name+" ✅")
}

func HandleSettingsCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	st := getSettingsState(chatID)
	if st == nil {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case setCancel:
		settingsFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Settings closed.", nil)

	case setPickName:
		st.Step = setStepName
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Send me your new roster name:", nil)

	case setPickNotify:
		u, err := db.GetUser(ctx, database, cb.From.ID)
		if err != nil || u == nil {
			metrics.HandlerErrors.Inc()
			return
		}
		if err := db.UpdateNotification(ctx, database, cb.From.ID, !u.Notification); err != nil {
			metrics.HandlerErrors.Inc()
			return
		}
		settingsFSM.Delete(chatID)
		state := "on 🔔"
		if u.Notification {
			state = "off 🔕"
		}
		replaceOrSend(bot, chatID, st.MsgID, "Notifications are now "+state, nil)
	}
}
