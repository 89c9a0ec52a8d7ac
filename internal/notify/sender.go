package notify

import (
	"context"
	"errors"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// ErrNoChannel is returned by a Sender that cannot reach the contact.
var ErrNoChannel = errors.New("no delivery channel for contact")

// Sender delivers a single message over one channel.
type Sender interface {
	Send(ctx context.Context, to models.Contact, msg domain.Message) error
}
