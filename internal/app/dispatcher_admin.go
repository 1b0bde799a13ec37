package app

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/handlers"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/ctxutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// AdminDispatcher routes one admin-surface update. AdminIDs bootstraps
// the first team managers: everyone else gets their tier from the
// access flow.
type AdminDispatcher struct {
	Bot      *tgbotapi.BotAPI
	DB       *sql.DB
	Loc      *time.Location
	Queue    *livemsg.RefreshQueue
	Limiter  *ChatLimiter
	AdminIDs []int64
	Log      *zap.SugaredLogger
}

func (d *AdminDispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		metrics.BotUpdates.WithLabelValues("admin").Inc()
		unlock := d.Limiter.lock(cb.Message.Chat.ID)
		defer unlock()
		ctx = ctxutil.WithChatID(ctx, cb.Message.Chat.ID)
		ctx = ctxutil.WithUserID(ctx, cb.From.ID)
		ctx = ctxutil.WithOp(ctx, "admin_callback")
		defer recoverUpdate(ctx, d.Log)
		d.handleCallback(ctx, cb)

	case update.Message != nil && update.Message.Chat.IsPrivate():
		msg := update.Message
		metrics.BotUpdates.WithLabelValues("admin").Inc()
		unlock := d.Limiter.lock(msg.Chat.ID)
		defer unlock()
		ctx = ctxutil.WithChatID(ctx, msg.Chat.ID)
		ctx = ctxutil.WithUserID(ctx, msg.From.ID)
		ctx = ctxutil.WithOp(ctx, "admin_message")
		defer recoverUpdate(ctx, d.Log)
		d.handleMessage(ctx, msg)
	}
}

func (d *AdminDispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch {
	case handlers.InEventFlow(chatID) && !strings.HasPrefix(msg.Text, "/start"):
		handlers.HandleEventText(ctx, d.Bot, d.DB, msg, d.Loc)
		return
	case handlers.InBroadcastFlow(chatID) && !strings.HasPrefix(msg.Text, "/start"):
		handlers.HandleBroadcastText(ctx, d.Bot, d.DB, msg)
		return
	}

	switch msg.Text {
	case "/start":
		d.bootstrapAdmin(ctx, msg)
		handlers.HandleAdminStart(ctx, d.Bot, d.DB, msg)
	case "📋 View Attendance", "/attendance":
		handlers.StartViewAttendance(ctx, d.Bot, d.DB, msg, d.Loc)
	case "📤 Export Attendance", "/export":
		handlers.StartExportFSM(ctx, d.Bot, d.DB, msg, d.Loc)
	case "🗓 Manage Events", "/events":
		handlers.StartEventFSM(ctx, d.Bot, d.DB, msg)
	case "⏰ Send Reminders", "/remind":
		handlers.StartAnnounceFSM(ctx, d.Bot, d.DB, msg)
	case "👥 Manage Access", "/access":
		handlers.StartAccessFSM(ctx, d.Bot, d.DB, msg)
	case "📢 Club Broadcast", "/broadcast":
		handlers.StartBroadcastFSM(ctx, d.Bot, d.DB, msg)
	default:
		_, _ = d.Bot.Send(tgbotapi.NewMessage(chatID, "Unknown command — hit /start for the menu."))
	}
}

func (d *AdminDispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "acc_") || handlers.InAccessFlow(chatID):
		handlers.HandleAccessCallback(ctx, d.Bot, d.DB, cb)
	case strings.HasPrefix(data, "bc_"):
		handlers.HandleBroadcastCallback(ctx, d.Bot, d.DB, cb)
	case strings.HasPrefix(data, "evt_") || handlers.InEventFlow(chatID):
		handlers.HandleEventCallback(ctx, d.Bot, d.DB, cb, d.Loc, d.Queue)
	case strings.HasPrefix(data, "ann_") || handlers.InAnnounceFlow(chatID):
		handlers.HandleAnnounceCallback(ctx, d.Bot, d.DB, cb, d.Loc)
	case strings.HasPrefix(data, "view_") || handlers.InViewFlow(chatID):
		handlers.HandleViewCallback(ctx, d.Bot, d.DB, cb, d.Loc)
	case strings.HasPrefix(data, "exp_") || handlers.InExportFlow(chatID):
		handlers.HandleExportCallback(ctx, d.Bot, d.DB, cb)
	default:
		fsmutil.DisableMarkup(d.Bot, chatID, cb.Message.MessageID)
		if d.Log != nil {
			d.Log.Debugw("stale callback", "chat", chatID, "data", data)
		}
	}
}

// bootstrapAdmin grants the configured operator ids the top tier on
// first contact, so a fresh deployment has someone who can approve
// everyone else.
func (d *AdminDispatcher) bootstrapAdmin(ctx context.Context, msg *tgbotapi.Message) {
	if !slices.Contains(d.AdminIDs, msg.From.ID) {
		return
	}
	u, err := handlers.EnsureUser(ctx, d.DB, msg.From)
	if err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if u.Tier >= models.TierTeamManager {
		return
	}
	if err := db.SetTier(ctx, d.DB, msg.From.ID, models.TierTeamManager); err != nil {
		metrics.HandlerErrors.Inc()
		return
	}
	if d.Log != nil {
		d.Log.Infow("bootstrapped team manager", "user", msg.From.ID)
	}
}
