package handlers

import (
	"context"
	"database/sql"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/menu"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/tg"
)

// EnsureUser caches a first-contact user (tier 0, blank profile) and
// opportunistically resyncs a drifted handle. Returns the stored user.
func EnsureUser(ctx context.Context, database *sql.DB, from *tgbotapi.User) (*models.User, error) {
	u, err := db.GetUser(ctx, database, from.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		if err := db.CacheNewUser(ctx, database, from.ID, from.UserName); err != nil {
			return nil, err
		}
		return db.GetUser(ctx, database, from.ID)
	}
	if u.Handle != from.UserName {
		if err := db.SyncHandle(ctx, database, from.ID, from.UserName); err != nil {
			return nil, err
		}
		u.Handle = from.UserName
	}
	return u, nil
}

// HandleMemberStart greets and shows the tier-appropriate menu, or
// points an unregistered user at the registration flow.
func HandleMemberStart(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	u, err := EnsureUser(ctx, database, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		sendText(bot, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	var text string
	switch {
	case u.Tier < models.TierPending:
		text = "Welcome! You are not registered yet — hit 📝 Register to get started."
	case u.Tier < models.BotAccessFloor:
		text = "Your registration is pending approval. Sit tight!"
	default:
		text = "Welcome back " + u.Name + "! What would you like to do?"
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyMarkup = menu.MemberMenu(u.Tier)
	if _, err := tg.Send(bot, out); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// HandleAdminStart shows the admin keyboard to authorized staff.
func HandleAdminStart(ctx context.Context, bot *tgbotapi.BotAPI, database *sql.DB, msg *tgbotapi.Message) {
	u, err := EnsureUser(ctx, database, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if u.Tier < models.TierMember {
		sendText(bot, msg.Chat.ID, "This bot is for club staff. Nothing to see here 👀")
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Hello "+u.Name+", pick an action:")
	out.ReplyMarkup = menu.AdminMenu(u.Tier)
	if _, err := tg.Send(bot, out); err != nil {
		metrics.HandlerErrors.Inc()
	}
}
