package handlers

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/menu"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	regStepGender = iota
	regStepName
	regStepConfirm

	regGenderMale   = "reg_gender_male"
	regGenderFemale = "reg_gender_female"
	regConfirm      = "reg_confirm"
	regBack         = "reg_back"
	regCancel       = "reg_cancel"
)

type registerState struct {
	Step   int
	Gender models.Gender
	Name   string
	MsgID  int
}

var registerFSM sync.Map // chatID -> *registerState

func getRegisterState(chatID int64) *registerState {
	v, ok := registerFSM.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*registerState)
}

// InRegisterFlow reports whether the chat has a registration in flight.
func InRegisterFlow(chatID int64) bool { return getRegisterState(chatID) != nil }

// StartRegisterFSM begins the gender → name → confirm flow.
func StartRegisterFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	u, err := EnsureUser(ctx, database, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if u.Tier >= models.TierPending {
		sendText(bot, chatID, "You are already registered 😉")
		return
	}

	st := &registerState{Step: regStepGender}
	registerFSM.Store(chatID, st)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Male", regGenderMale),
			tgbotapi.NewInlineKeyboardButtonData("Female", regGenderFemale),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", regCancel),
		),
	)
	st.MsgID = replaceOrSend(bot, chatID, 0, "Welcome to the club! First up: your gender (used for attendance rosters).", &kb)
}

// HandleRegisterText consumes the free-text name step.
func HandleRegisterText(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st := getRegisterState(chatID)
	if st == nil || st.Step != regStepName {
		return
	}
	if fsmutil.IsCancelText(msg.Text) {
		registerFSM.Delete(chatID)
		sendText(bot, chatID, "Registration cancelled.")
		return
	}

	name := strings.TrimSpace(msg.Text)
	if name == "" {
		sendText(bot, chatID, "Please send your name as plain text.")
		return
	}
	st.Name = name
	st.Step = regStepConfirm

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", regConfirm),
		),
		fsmutil.BackCancelRow(regBack, regCancel),
	)
	st.MsgID = replaceOrSend(bot, chatID, 0,
		"Registering as "+st.Name+" ("+string(st.Gender)+"). All good?", &kb)
}

// HandleRegisterCallback consumes the button steps.
func HandleRegisterCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	st := getRegisterState(chatID)
	if st == nil {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case regCancel:
		registerFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "Registration cancelled.", nil)

	case regGenderMale, regGenderFemale:
		if st.Step != regStepGender {
			return
		}
		st.Gender = models.Male
		if cb.Data == regGenderFemale {
			st.Gender = models.Female
		}
		st.Step = regStepName
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
			"Got it. Now send me your name as it should appear on rosters:", nil)

	case regBack:
		if st.Step != regStepConfirm {
			return
		}
		st.Step = regStepName
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Send me your name again:", nil)

	case regConfirm:
		if st.Step != regStepConfirm {
			return
		}
		if err := db.RegisterUser(ctx, database, cb.From.ID, st.Name, st.Gender); err != nil {
			metrics.HandlerErrors.Inc()
			replaceOrSend(bot, chatID, st.MsgID, "Could not save your registration, please try again.", nil)
			return
		}
		registerFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID,
			"You're in! 🎉 An admin will approve your membership shortly.", nil)
		out := tgbotapi.NewMessage(chatID, "Meanwhile, here is your menu:")
		out.ReplyMarkup = menu.MemberMenu(models.TierPending)
		if _, err := tg.Send(bot, out); err != nil {
			metrics.HandlerErrors.Inc()
		}
	}
}
