package service

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/notify"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
)

const reminderClaimTTL = 24 * time.Hour

type ReminderOptions struct {
	LeadMin  time.Duration
	LeadMax  time.Duration
	Location *time.Location
}

// ReminderService sends one reminder per confirmed reservation shortly
// before it starts, to owners whose calendar is not synced.
type ReminderService struct {
	store  ReservationStore
	claims domain.ClaimStore
	fx     *effects
	opts   ReminderOptions
	now    func() time.Time
	logger *zerolog.Logger
}

func NewReminderService(store ReservationStore, claims domain.ClaimStore, collab Collaborators, opts ReminderOptions, logger *zerolog.Logger) *ReminderService {
	if opts.LeadMin <= 0 {
		opts.LeadMin = 25 * time.Minute
	}
	if opts.LeadMax <= opts.LeadMin {
		opts.LeadMax = opts.LeadMin + 10*time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ReminderService{
		store:  store,
		claims: claims,
		fx:     newEffects(collab, "", opts.Location, logger),
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

func (s *ReminderService) SetClock(now func() time.Time) {
	s.now = now
}

// SendDueReminders notifies owners of confirmed reservations starting within
// [now+LeadMin, now+LeadMax]. Each reservation is claimed before dispatch so
// overlapping runs or instances send at most one reminder.
func (s *ReminderService) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now().In(s.opts.Location)
	today := timeslot.DateOf(now)

	reservations, err := s.store.ListReservationsByDate(ctx, today, models.ReservationConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to list today's reservations: %w", err)
	}

	from, to := now.Add(s.opts.LeadMin), now.Add(s.opts.LeadMax)
	sent := 0
	for _, res := range reservations {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		start := timeslot.At(res.Date, res.StartTime, s.opts.Location)
		if start.Before(from) || start.After(to) {
			continue
		}

		owner := s.fx.owner(ctx, res.OwnerID)
		if owner != nil && owner.CalendarSynced {
			continue
		}

		key := "reminder:" + res.ID
		ok, err := s.claims.Claim(ctx, key, reminderClaimTTL)
		if err != nil {
			s.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to claim reminder")
			continue
		}
		if !ok {
			continue
		}

		if err := s.send(ctx, res, owner); err != nil {
			s.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("reminder not delivered")
			if relErr := s.claims.Release(ctx, key); relErr != nil {
				s.logger.Error().Err(relErr).Str("key", key).Msg("failed to release reminder claim")
			}
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *ReminderService) send(ctx context.Context, res *models.Reservation, owner *models.Owner) error {
	if s.fx.c.Notifier == nil {
		return nil
	}
	contact := models.Contact{OwnerID: res.OwnerID}
	if owner != nil {
		contact = owner.Contact()
	}
	return s.fx.c.Notifier.Notify(ctx, contact, notify.Reminder(res))
}
