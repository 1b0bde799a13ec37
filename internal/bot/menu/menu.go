package menu

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// MemberMenu returns the member-surface keyboard for a tier.
func MemberMenu(tier int) tgbotapi.ReplyKeyboardMarkup {
	if tier < models.BotAccessFloor {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("📝 Register"),
			),
		)
	}
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("✅ Indicate Attendance"),
			tgbotapi.NewKeyboardButton("👀 Kaypoh"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗓 My Events"),
			tgbotapi.NewKeyboardButton("⚙️ Settings"),
		),
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// AdminMenu returns the admin-surface keyboard for a tier. Event and
// access management need the core tier; broadcasts need admin.
func AdminMenu(tier int) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📋 View Attendance"),
			tgbotapi.NewKeyboardButton("📤 Export Attendance"),
		),
	}
	if tier >= models.TierCore {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗓 Manage Events"),
			tgbotapi.NewKeyboardButton("⏰ Send Reminders"),
		))
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("👥 Manage Access"),
		))
	}
	if tier >= models.TierAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📢 Club Broadcast"),
		))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}
