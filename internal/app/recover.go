package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leelingzhen/telegram-attendance-bot/internal/ctxutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/observability"
)

// recoverUpdate keeps one panicking handler from taking down the whole
// bot. Deferred at the top of every dispatch; the context carries the
// chat, user and operation it was tagged with on the way in.
func recoverUpdate(ctx context.Context, log *zap.SugaredLogger) {
	r := recover()
	if r == nil {
		return
	}
	chatID, _ := ctxutil.ChatID(ctx)
	userID, _ := ctxutil.UserID(ctx)
	op, _ := ctxutil.Op(ctx)
	err := fmt.Errorf("panic in %s update: %v", op, r)
	observability.CaptureErr(err)
	if log != nil {
		log.Errorw("handler panicked", "op", op, "chat", chatID, "user", userID, "panic", r)
	}
}
