package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to models.Contact, msg domain.Message) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}

func TestTelegramSender(t *testing.T) {
	bot := new(mockBot)
	sender := NewTelegramSender(bot)
	ctx := context.Background()

	t.Run("PlainMessage", func(t *testing.T) {
		bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ChatID == 42 && msg.Text == "hello" && msg.ReplyMarkup == nil
		})).Return(tgbotapi.Message{}, nil).Once()

		err := sender.Send(ctx, models.Contact{TelegramChatID: 42}, domain.Message{Kind: domain.NotifyReminder, Text: "hello"})
		assert.NoError(t, err)
		bot.AssertExpectations(t)
	})

	t.Run("LinkButton", func(t *testing.T) {
		bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			return ok && len(kb.InlineKeyboard) == 1 && *kb.InlineKeyboard[0][0].URL == "http://x/booking"
		})).Return(tgbotapi.Message{}, nil).Once()

		err := sender.Send(ctx, models.Contact{TelegramChatID: 42}, domain.Message{
			Kind: domain.NotifyWaitlistOffer, Text: "free", Link: "http://x/booking",
		})
		assert.NoError(t, err)
		bot.AssertExpectations(t)
	})

	t.Run("NoChat", func(t *testing.T) {
		err := sender.Send(ctx, models.Contact{OwnerID: "o1"}, domain.Message{Text: "x"})
		assert.ErrorIs(t, err, ErrNoChannel)
	})

	t.Run("SendError", func(t *testing.T) {
		bot.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked")).Once()
		err := sender.Send(ctx, models.Contact{TelegramChatID: 7}, domain.Message{Text: "x"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
	})
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	cfg := config.NotificationsConfig{RatePerSecond: 1000, Burst: 10}
	msg := domain.Message{Kind: domain.NotifyReminder, Text: "hi"}

	t.Run("PrimaryDelivers", func(t *testing.T) {
		primary, fallback := new(mockSender), new(mockSender)
		to := models.Contact{OwnerID: "o1", TelegramChatID: 1}
		primary.On("Send", mock.Anything, to, msg).Return(nil).Once()

		d := NewDispatcher(primary, fallback, cfg, zerolog.Nop())
		require.NoError(t, d.Notify(ctx, to, msg))
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FallbackWhenNoChannel", func(t *testing.T) {
		primary, fallback := new(mockSender), new(mockSender)
		to := models.Contact{OwnerID: "o2"}
		primary.On("Send", mock.Anything, to, msg).Return(ErrNoChannel).Once()
		fallback.On("Send", mock.Anything, to, msg).Return(nil).Once()

		d := NewDispatcher(primary, fallback, cfg, zerolog.Nop())
		require.NoError(t, d.Notify(ctx, to, msg))
		fallback.AssertExpectations(t)
	})

	t.Run("FailureIsCollaboratorError", func(t *testing.T) {
		primary := new(mockSender)
		primary.On("Send", mock.Anything, mock.Anything, msg).Return(errors.New("down")).Once()

		d := NewDispatcher(primary, nil, cfg, zerolog.Nop())
		err := d.Notify(ctx, models.Contact{TelegramChatID: 1}, msg)
		var collab *domain.CollaboratorError
		require.ErrorAs(t, err, &collab)
		assert.Equal(t, "notifier", collab.Collaborator)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		primary := new(mockSender)
		d := NewDispatcher(primary, nil, config.NotificationsConfig{RatePerSecond: 0.001, Burst: 1}, zerolog.Nop())
		primary.On("Send", mock.Anything, mock.Anything, msg).Return(nil).Once()
		require.NoError(t, d.Notify(ctx, models.Contact{TelegramChatID: 1}, msg))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, d.Notify(cctx, models.Contact{TelegramChatID: 1}, msg))
		primary.AssertNumberOfCalls(t, "Send", 1)
	})
}

func TestMessages(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2026, 3, 10, 9, 10, 0, 0, time.UTC)
	entry := &models.WaitlistEntry{
		ID:                7,
		DesiredDate:       date,
		DesiredStart:      timeslot.Hour(18),
		NotificationToken: "tok-1",
		ExpiresAt:         &expires,
	}

	assert.Equal(t, "http://app.test/booking/confirm?token=tok-1&waitlistId=7", WaitlistLink("http://app.test/", entry))

	offer := WaitlistOffer("http://app.test", entry, time.UTC)
	assert.Equal(t, domain.NotifyWaitlistOffer, offer.Kind)
	assert.Contains(t, offer.Text, "2026-03-10 at 18:00")
	assert.Contains(t, offer.Text, "09:10")

	res := &models.Reservation{
		Date:       date,
		StartTime:  timeslot.Hour(18),
		EndTime:    timeslot.MustParse("19:30"),
		TotalPrice: 7500,
	}
	assert.Contains(t, Reminder(res).Text, "18:00")
	assert.Contains(t, ManualPayment(res, "court.club").Text, "75.00 to alias court.club")
	assert.NotContains(t, ManualPayment(res, "").Text, "alias")
	assert.Contains(t, Confirmation(res).Text, "confirmed")
	assert.Equal(t, domain.NotifyCancellation, Cancellation(res).Kind)

	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "-1.50", FormatAmount(-150))
}
