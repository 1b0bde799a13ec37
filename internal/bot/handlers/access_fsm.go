package handlers

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/access"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

const (
	accStepBrowseTier = iota
	accStepPickUser
	accStepAssign

	accBack   = "acc_back"
	accCancel = "acc_cancel"

	accTierPrefix = "acc_tier_"
	accUserPrefix = "acc_user_"
	accSetPrefix  = "acc_set_"
)

type accessState struct {
	Step      int
	ActorTier int
	Levels    []models.AccessLevel
	Users     []models.User
	Target    models.User
	MsgID     int
}

var accessFSM sync.Map // chatID -> *accessState

func getAccessState(chatID int64) *accessState {
	v, ok := accessFSM.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*accessState)
}

func InAccessFlow(chatID int64) bool { return getAccessState(chatID) != nil }

// StartAccessFSM browses users by tier and reassigns tiers. Core tier
// and above; the team-manager tier is only assignable by a team manager.
func StartAccessFSM(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tier, err := db.TierOf(ctx, database, msg.From.ID)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if !access.IsAuthorized(tier, models.TierCore) {
		sendText(bot, chatID, "You need core access to manage access.")
		return
	}
	levels, err := access.New(database).LevelsVisibleTo(ctx, tier)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, chatID, "Could not fetch access levels, please try again.")
		return
	}

	st := &accessState{Step: accStepBrowseTier, ActorTier: tier, Levels: levels}
	accessFSM.Store(chatID, st)
	st.MsgID = replaceOrSend(bot, chatID, 0, "Browse users in which tier?", accessTierKeyboard(st))
}

func accessTierKeyboard(st *accessState) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(st.Levels)+2)
	// Pending signups first: that is what this flow is opened for most.
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🆕 Pending signups", accTierPrefix+strconv.Itoa(models.TierPending))))
	for _, lv := range st.Levels {
		if lv.Tier == models.TierPending {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(lv.Label, accTierPrefix+strconv.Itoa(lv.Tier))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", accCancel)))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func HandleAccessCallback(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	st := getAccessState(chatID)
	if st == nil {
		return
	}
	_, _ = tg.Request(bot, tgbotapi.NewCallback(cb.ID, ""))

	switch {
	case cb.Data == accCancel:
		accessFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID, "No changes made.", nil)

	case cb.Data == accBack:
		st.Step = accStepBrowseTier
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Browse users in which tier?", accessTierKeyboard(st))

	case strings.HasPrefix(cb.Data, accTierPrefix):
		tier, err := strconv.Atoi(strings.TrimPrefix(cb.Data, accTierPrefix))
		if err != nil {
			return
		}
		users, err := db.ListUsersByTier(ctx, database, tier)
		if err != nil {
			metrics.HandlerErrors.Inc()
			return
		}
		if len(users) == 0 {
			st.MsgID = replaceOrSend(bot, chatID, st.MsgID,
				"Nobody holds that tier.\n\nBrowse users in which tier?", accessTierKeyboard(st))
			return
		}
		st.Step = accStepPickUser
		st.Users = users
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(users)+1)
		for _, u := range users {
			label := u.Name
			if label == "" {
				label = u.PrettyHandle()
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, accUserPrefix+strconv.FormatInt(u.ID, 10))))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", accBack),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", accCancel)))
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, "Whose access?", &kb)

	case strings.HasPrefix(cb.Data, accUserPrefix):
		if st.Step != accStepPickUser {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, accUserPrefix), 10, 64)
		if err != nil {
			return
		}
		var target *models.User
		for i := range st.Users {
			if st.Users[i].ID == id {
				target = &st.Users[i]
				break
			}
		}
		if target == nil {
			return
		}
		st.Step = accStepAssign
		st.Target = *target

		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(st.Levels)+1)
		for _, lv := range st.Levels {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(lv.Label, accSetPrefix+strconv.Itoa(lv.Tier))))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", accBack),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", accCancel)))
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)

		text := "Name: " + st.Target.Name +
			"\nHandle: " + st.Target.PrettyHandle() +
			"\nGender: " + string(st.Target.Gender) +
			"\nCurrent tier: " + tierName(ctx, database, st.Target.Tier) +
			"\n\nAssign which tier?"
		st.MsgID = replaceOrSend(bot, chatID, st.MsgID, text, &kb)

	case strings.HasPrefix(cb.Data, accSetPrefix):
		if st.Step != accStepAssign {
			return
		}
		tier, err := strconv.Atoi(strings.TrimPrefix(cb.Data, accSetPrefix))
		if err != nil {
			return
		}
		if !assignable(tier, st.Levels) {
			return
		}
		if err := db.SetTier(ctx, database, st.Target.ID, tier); err != nil {
			metrics.HandlerErrors.Inc()
			sendText(bot, chatID, "Could not update access, please try again.")
			return
		}
		accessFSM.Delete(chatID)
		replaceOrSend(bot, chatID, st.MsgID,
			st.Target.Name+" is now "+tierName(ctx, database, tier)+". ✅", nil)
		notifyTierChange(bot, st.Target, tier)
	}
}

// tierName resolves the seeded label, falling back to the bare number
// for tiers outside the seed.
func tierName(ctx context.Context, database *sql.DB, tier int) string {
	if label, err := db.TierLabel(ctx, database, tier); err == nil && label != "" {
		return label
	}
	return strconv.Itoa(tier)
}

// assignable re-checks the callback payload against the levels the
// actor was shown; stale or forged data must not escalate.
func assignable(tier int, levels []models.AccessLevel) bool {
	for _, lv := range levels {
		if lv.Tier == tier {
			return true
		}
	}
	return false
}

// notifyTierChange tells the user their access changed. Best-effort:
// they may have blocked the bot.
func notifyTierChange(bot *tgbotapi.BotAPI, target models.User, tier int) {
	var text string
	switch {
	case tier >= models.TierMember:
		text = "Welcome to the club! 🎉 You now have member access. Hit /start to see your menu."
	case tier >= models.BotAccessFloor:
		text = "Your signup was approved! Hit /start to see your menu."
	default:
		return
	}
	_, _ = tg.Send(bot, tgbotapi.NewMessage(target.ID, text))
}
