package tg

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// MessageRef locates a sent message so it can be edited or pinned later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the transport capability the core components depend on.
// The broadcast dispatcher and live message sync are written against it
// so tests can substitute a fake.
type Messenger interface {
	Send(chatID int64, text string, spans []models.StyleSpan) (MessageRef, error)
	Edit(chatID int64, messageID int, text string, spans []models.StyleSpan) error
	Pin(chatID int64, messageID int) error
}

// BotMessenger adapts a live BotAPI to Messenger.
type BotMessenger struct {
	Bot *tgbotapi.BotAPI
}

func NewBotMessenger(bot *tgbotapi.BotAPI) *BotMessenger {
	return &BotMessenger{Bot: bot}
}

func (b *BotMessenger) Send(chatID int64, text string, spans []models.StyleSpan) (MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.Entities = SpansToEntities(spans)
	m, err := Send(b.Bot, msg)
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChatID: chatID, MessageID: m.MessageID}, nil
}

func (b *BotMessenger) Edit(chatID int64, messageID int, text string, spans []models.StyleSpan) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.Entities = SpansToEntities(spans)
	_, err := Send(b.Bot, edit)
	return err
}

func (b *BotMessenger) Pin(chatID int64, messageID int) error {
	_, err := Request(b.Bot, tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	})
	return err
}

// SpansToEntities converts stored style spans to wire entities.
func SpansToEntities(spans []models.StyleSpan) []tgbotapi.MessageEntity {
	if len(spans) == 0 {
		return nil
	}
	entities := make([]tgbotapi.MessageEntity, 0, len(spans))
	for _, sp := range spans {
		entities = append(entities, tgbotapi.MessageEntity{
			Type:   sp.Kind,
			Offset: sp.Offset,
			Length: sp.Length,
		})
	}
	return entities
}

// EntitiesToSpans converts wire entities from an inbound message to
// storable style spans, preserving order.
func EntitiesToSpans(entities []tgbotapi.MessageEntity) []models.StyleSpan {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]models.StyleSpan, 0, len(entities))
	for _, e := range entities {
		spans = append(spans, models.StyleSpan{
			Kind:   e.Type,
			Offset: e.Offset,
			Length: e.Length,
		})
	}
	return spans
}
