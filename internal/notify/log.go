package notify

import (
	"context"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// LogSender writes messages to the log. It is the delivery channel when no
// bot token is configured and for contacts without a chat.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to models.Contact, msg domain.Message) error {
	s.logger.Info().
		Str("owner_id", to.OwnerID).
		Str("email", to.Email).
		Str("kind", msg.Kind).
		Str("link", msg.Link).
		Msg(msg.Text)
	return nil
}
