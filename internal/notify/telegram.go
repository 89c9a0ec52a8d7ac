package notify

import (
	"context"
	"fmt"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAPI is the subset of the bot client used for delivery.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot TelegramAPI
}

// NewTelegramBot connects to the Bot API with the given token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramSender(bot TelegramAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Send(_ context.Context, to models.Contact, msg domain.Message) error {
	if to.TelegramChatID == 0 {
		return ErrNoChannel
	}

	out := tgbotapi.NewMessage(to.TelegramChatID, msg.Text)
	out.DisableWebPagePreview = true
	if msg.Link != "" {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(linkLabel(msg.Kind), msg.Link),
			),
		)
	}

	if _, err := s.bot.Send(out); err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", to.TelegramChatID, err)
	}
	return nil
}

func linkLabel(kind string) string {
	switch kind {
	case domain.NotifyWaitlistOffer:
		return "Book this slot"
	case domain.NotifyPaymentPending:
		return "Pay now"
	default:
		return "Open"
	}
}
