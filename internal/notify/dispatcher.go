package notify

import (
	"context"
	"errors"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Dispatcher implements domain.Notifier. Outbound sends share one rate
// limiter; a contact the primary sender cannot reach goes to the fallback.
type Dispatcher struct {
	primary  Sender
	fallback Sender
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewDispatcher(primary, fallback Sender, cfg config.NotificationsConfig, logger zerolog.Logger) *Dispatcher {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, to models.Contact, msg domain.Message) error {
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.IncNotification(msg.Kind, "dropped")
		return &domain.CollaboratorError{Collaborator: "notifier", Err: err}
	}

	err := d.primary.Send(ctx, to, msg)
	if errors.Is(err, ErrNoChannel) && d.fallback != nil {
		err = d.fallback.Send(ctx, to, msg)
	}
	if err != nil {
		metrics.IncNotification(msg.Kind, "failed")
		return &domain.CollaboratorError{Collaborator: "notifier", Err: err}
	}

	metrics.IncNotification(msg.Kind, "sent")
	d.logger.Debug().Str("owner_id", to.OwnerID).Str("kind", msg.Kind).Msg("notification sent")
	return nil
}
