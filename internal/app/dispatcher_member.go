package app

import (
	"context"
	"database/sql"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/handlers"
	"github.com/leelingzhen/telegram-attendance-bot/internal/bot/shared/fsmutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/ctxutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/livemsg"
	"github.com/leelingzhen/telegram-attendance-bot/internal/metrics"
)

// MemberDispatcher routes one member-surface update to its handler.
// Updates for the same chat are serialized through the limiter so FSM
// steps cannot interleave.
type MemberDispatcher struct {
	Bot     *tgbotapi.BotAPI
	DB      *sql.DB
	Loc     *time.Location
	Sync    *livemsg.Sync
	Queue   *livemsg.RefreshQueue
	Limiter *ChatLimiter
	Log     *zap.SugaredLogger
}

func (d *MemberDispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		metrics.BotUpdates.WithLabelValues("member").Inc()
		unlock := d.Limiter.lock(cb.Message.Chat.ID)
		defer unlock()
		ctx = ctxutil.WithChatID(ctx, cb.Message.Chat.ID)
		ctx = ctxutil.WithUserID(ctx, cb.From.ID)
		ctx = ctxutil.WithOp(ctx, "member_callback")
		defer recoverUpdate(ctx, d.Log)
		d.handleCallback(ctx, cb)

	case update.Message != nil && update.Message.Chat.IsPrivate():
		msg := update.Message
		metrics.BotUpdates.WithLabelValues("member").Inc()
		unlock := d.Limiter.lock(msg.Chat.ID)
		defer unlock()
		ctx = ctxutil.WithChatID(ctx, msg.Chat.ID)
		ctx = ctxutil.WithUserID(ctx, msg.From.ID)
		ctx = ctxutil.WithOp(ctx, "member_message")
		defer recoverUpdate(ctx, d.Log)
		d.handleMessage(ctx, msg)
	}
}

func (d *MemberDispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// A flow waiting on free text gets it before command routing, so
	// nobody gets stuck because their answer looks like a command.
	switch {
	case handlers.InRegisterFlow(chatID) && !strings.HasPrefix(msg.Text, "/start"):
		handlers.HandleRegisterText(ctx, d.Bot, d.DB, msg)
		return
	case handlers.InSettingsFlow(chatID) && !strings.HasPrefix(msg.Text, "/start"):
		handlers.HandleSettingsText(ctx, d.Bot, d.DB, msg)
		return
	case handlers.InAttendanceFlow(chatID) && !strings.HasPrefix(msg.Text, "/start"):
		handlers.HandleAttendanceText(ctx, d.Bot, d.DB, msg, d.Queue)
		return
	}

	switch msg.Text {
	case "/start":
		handlers.HandleMemberStart(ctx, d.Bot, d.DB, msg)
	case "📝 Register", "/register":
		handlers.StartRegisterFSM(ctx, d.Bot, d.DB, msg)
	case "✅ Indicate Attendance", "/attendance":
		handlers.StartAttendanceFSM(ctx, d.Bot, d.DB, msg, d.Loc)
	case "👀 Kaypoh", "/kaypoh":
		handlers.StartKaypohFSM(ctx, d.Bot, d.DB, msg, d.Loc)
	case "🗓 My Events", "/events":
		handlers.HandleMyEvents(ctx, d.Bot, d.DB, msg, d.Loc)
	case "⚙️ Settings", "/settings":
		handlers.StartSettingsFSM(ctx, d.Bot, d.DB, msg)
	default:
		_, _ = d.Bot.Send(tgbotapi.NewMessage(chatID, "I did not catch that — hit /start for the menu."))
	}
}

func (d *MemberDispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	// Event pick buttons carry the bare event identity, so the active
	// flow decides where unprefixed data goes.
	switch {
	case strings.HasPrefix(data, "reg_"):
		handlers.HandleRegisterCallback(ctx, d.Bot, d.DB, cb)
	case strings.HasPrefix(data, "set_"):
		handlers.HandleSettingsCallback(ctx, d.Bot, d.DB, cb)
	case strings.HasPrefix(data, "att_") || handlers.InAttendanceFlow(chatID):
		handlers.HandleAttendanceCallback(ctx, d.Bot, d.DB, cb, d.Queue)
	case strings.HasPrefix(data, "kay_") || handlers.InKaypohFlow(chatID):
		handlers.HandleKaypohCallback(ctx, d.Bot, d.DB, cb, d.Sync)
	default:
		// Orphaned keyboard from a finished flow: strip it so the dead
		// buttons stop arriving.
		fsmutil.DisableMarkup(d.Bot, chatID, cb.Message.MessageID)
		if d.Log != nil {
			d.Log.Debugw("stale callback", "chat", chatID, "data", data)
		}
	}
}
