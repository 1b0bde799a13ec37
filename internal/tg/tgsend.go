package tg

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/observability"
)

// Systemic: 5xx, 429, timeouts. Ordinary Telegram validation errors are
// not worth a Sentry event.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "429") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "timeout") {
		return true
	}
	return false
}

// IsBlocked reports the "recipient unreachable" condition: the user
// blocked the bot or deactivated their account.
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Forbidden: bot was blocked") ||
		strings.Contains(s, "Forbidden: user is deactivated") ||
		strings.Contains(s, "Forbidden: bot can't initiate conversation")
}

// IsRejected reports the "chat rejected the content" condition: bad
// chat id, entities that do not parse, or an edit target that is gone.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Bad Request: chat not found") ||
		strings.Contains(s, "Bad Request: can't parse entities") ||
		strings.Contains(s, "Bad Request: message to edit not found") ||
		strings.Contains(s, "Bad Request: message can't be edited")
}

// IsNotModified is the harmless edit-no-op error.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func Send(bot *tgbotapi.BotAPI, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := bot.Send(msg)
	if isSystemErr(err) {
		observability.CaptureErr(err)
	}
	return m, err
}

func Request(bot *tgbotapi.BotAPI, req tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r, err := bot.Request(req)
	if isSystemErr(err) {
		observability.CaptureErr(err)
	}
	return r, err
}
